package store

import (
	"fmt"
	"slices"

	"furnace-scheduler/internal/engine"
	"furnace-scheduler/internal/model"
)

func toModel(b *engine.Booking) model.Booking {
	row := model.Booking{
		ID:         b.ID,
		FurnaceID:  b.FurnaceID,
		StartDate:  b.StartDate.String(),
		Registrant: b.Registrant,
		Status:     b.Status.String(),
		History:    slices.Clone(b.History),
		CreatedAt:  b.CreatedAt,
	}
	if b.Timeline != nil {
		tl := b.Timeline.Clone()
		row.Timeline = &tl
	}
	for _, l := range b.Lines {
		row.Lines = append(row.Lines, model.SerialLine{
			BookingID: b.ID,
			LineIndex: l.LineIndex,
			Serial:    l.Serial,
			Voltage:   voltageText(l.Voltage),
			Status:    l.Status.String(),
			History:   slices.Clone(l.History),
		})
	}
	return row
}

func fromModel(row model.Booking) (engine.Booking, error) {
	b := engine.Booking{
		ID:         row.ID,
		FurnaceID:  row.FurnaceID,
		Registrant: row.Registrant,
		History:    row.History,
		CreatedAt:  row.CreatedAt,
		Timeline:   row.Timeline,
	}

	var err error
	if row.StartDate != "" {
		if b.StartDate, err = engine.ParseDate(row.StartDate); err != nil {
			return engine.Booking{}, err
		}
	}
	if b.Status, err = engine.ParseStatus(row.Status); err != nil {
		return engine.Booking{}, err
	}

	for _, l := range row.Lines {
		line := engine.SerialLine{
			Serial:    l.Serial,
			LineIndex: l.LineIndex,
			History:   l.History,
		}
		if l.Voltage != "" {
			if line.Voltage, err = engine.ParseVoltageClass(l.Voltage); err != nil {
				return engine.Booking{}, fmt.Errorf("line %d: %w", l.LineIndex, err)
			}
		}
		if line.Status, err = engine.ParseStatus(l.Status); err != nil {
			return engine.Booking{}, fmt.Errorf("line %d: %w", l.LineIndex, err)
		}
		b.Lines = append(b.Lines, line)
	}
	return b, nil
}

func voltageText(c engine.VoltageClass) string {
	if c == 0 {
		return ""
	}
	return c.String()
}

func toFurnaceModel(f engine.FurnaceSpec) model.Furnace {
	return model.Furnace{
		ID:                         f.ID,
		Name:                       f.Name,
		Lines:                      f.Lines,
		MinGapHalves:               f.MinGapHalves,
		AllowSundaySecondHalfStart: f.AllowSundaySecondHalfStart,
		Aliases:                    slices.Clone(f.Aliases),
	}
}

func fromFurnaceModel(m model.Furnace) engine.FurnaceSpec {
	return engine.FurnaceSpec{
		ID:                         m.ID,
		Name:                       m.Name,
		Lines:                      m.Lines,
		MinGapHalves:               m.MinGapHalves,
		AllowSundaySecondHalfStart: m.AllowSundaySecondHalfStart,
		Aliases:                    m.Aliases,
	}
}
