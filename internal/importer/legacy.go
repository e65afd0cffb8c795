package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"furnace-scheduler/internal/engine"
	"furnace-scheduler/internal/parse"
)

// legacyEvent is one registration in the calendar export.
type legacyEvent struct {
	ID            string         `json:"id"`
	Date          string         `json:"date"`
	Furnace       string         `json:"furnace"`
	FurnaceLabel  string         `json:"furnaceLabel"`
	Registrant    string         `json:"registrant"`
	Serials       []string       `json:"serials"`
	SerialDetails []legacyDetail `json:"serialDetails"`
	VoltageLabel  string         `json:"voltageLabel"`
	Status        string         `json:"status"`
	IsDelay       bool           `json:"isDelay"`
}

type legacyDetail struct {
	Serial       string          `json:"serial"`
	VoltageValue json.RawMessage `json:"voltageValue"`
	VoltageLabel string          `json:"voltageLabel"`
	Status       string          `json:"status"`
	History      []legacyHistory `json:"history"`
}

type legacyHistory struct {
	Status    string `json:"status"`
	Actor     string `json:"actor"`
	Timestamp string `json:"timestamp"`
}

var errNoLines = errors.New("event has no serial lines")

// decodeExport reads the schedule list stored under key.
func decodeExport(raw []byte, key string) ([]legacyEvent, error) {
	var export map[string]json.RawMessage
	if err := json.Unmarshal(raw, &export); err != nil {
		return nil, fmt.Errorf("failed to decode export: %w", err)
	}
	list, ok := export[key]
	if !ok {
		return nil, fmt.Errorf("export has no %q schedule", key)
	}
	var events []legacyEvent
	if err := json.Unmarshal(list, &events); err != nil {
		return nil, fmt.Errorf("failed to decode %q schedule: %w", key, err)
	}
	return events, nil
}

// furnaceLabel prefers the explicit furnace field, as the calendar did.
func (e legacyEvent) furnaceLabel() string {
	if strings.TrimSpace(e.Furnace) != "" {
		return e.Furnace
	}
	return e.FurnaceLabel
}

// toBooking converts an event for the given furnace. Its timeline is left
// empty; the scheduler rebuilds it.
func (e legacyEvent) toBooking(furnaceID string, at time.Time) (*engine.Booking, error) {
	start, err := parseEventDate(e.Date)
	if err != nil {
		return nil, err
	}
	eventStatus, err := parse.ParseStatus(e.Status)
	if err != nil {
		return nil, err
	}

	lines, err := e.lines(eventStatus, at)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, errNoLines
	}
	if e.IsDelay {
		for i := range lines {
			delay(&lines[i], e.Registrant, at)
		}
	}

	b := &engine.Booking{
		ID:         strings.TrimSpace(e.ID),
		FurnaceID:  furnaceID,
		StartDate:  start,
		Registrant: strings.TrimSpace(e.Registrant),
		CreatedAt:  createdAtFromID(e.ID),
	}
	b.SetLines(lines, b.Registrant, at)
	return b, nil
}

func (e legacyEvent) lines(eventStatus engine.Status, at time.Time) ([]engine.SerialLine, error) {
	if len(e.SerialDetails) == 0 {
		out := make([]engine.SerialLine, 0, len(e.Serials))
		for _, raw := range e.Serials {
			l, err := parse.ParseSerialSummary(raw)
			if err != nil {
				return nil, err
			}
			if l.Voltage == 0 {
				l.Voltage = engine.VoltageLow
				if v, err := parse.ParseVoltage(e.VoltageLabel); err == nil {
					l.Voltage = v
				}
			}
			l.Status = eventStatus
			out = append(out, l)
		}
		return out, nil
	}

	out := make([]engine.SerialLine, 0, len(e.SerialDetails))
	for _, d := range e.SerialDetails {
		serial := strings.TrimSpace(d.Serial)
		if serial == "" {
			continue
		}
		voltage, err := d.voltage()
		if err != nil {
			return nil, fmt.Errorf("serial %s: %w", serial, err)
		}
		status := eventStatus
		if d.Status != "" {
			if status, err = parse.ParseStatus(d.Status); err != nil {
				return nil, fmt.Errorf("serial %s: %w", serial, err)
			}
		}
		out = append(out, engine.SerialLine{
			Serial:  serial,
			Voltage: voltage,
			Status:  status,
			History: d.history(at),
		})
	}
	return out, nil
}

// voltage reads voltageValue, which the calendar stored as either a number or a string.
func (d legacyDetail) voltage() (engine.VoltageClass, error) {
	value := strings.Trim(strings.TrimSpace(string(d.VoltageValue)), `"`)
	if value != "" && value != "null" {
		return parse.ParseVoltage(value)
	}
	if strings.TrimSpace(d.VoltageLabel) != "" {
		return parse.ParseVoltage(d.VoltageLabel)
	}
	return engine.VoltageLow, nil
}

// history keeps the entries that still parse; the rest are dropped.
func (d legacyDetail) history(fallback time.Time) []engine.StatusEntry {
	var out []engine.StatusEntry
	for _, h := range d.History {
		status, err := parse.ParseStatus(h.Status)
		if err != nil {
			continue
		}
		at, err := time.Parse(time.RFC3339, h.Timestamp)
		if err != nil {
			at = fallback
		}
		out = append(out, engine.StatusEntry{Status: status, Actor: h.Actor, At: at})
	}
	return out
}

func delay(l *engine.SerialLine, actor string, at time.Time) {
	if l.Status == engine.StatusDelayed || l.Status == engine.StatusDone {
		return
	}
	if len(l.History) == 0 {
		l.History = append(l.History, engine.StatusEntry{Status: l.Status, Actor: actor, At: at})
	}
	l.History = append(l.History, engine.StatusEntry{Status: engine.StatusDelayed, Actor: actor, At: at})
	l.Status = engine.StatusDelayed
}

// parseEventDate accepts a calendar date or a full ISO timestamp.
func parseEventDate(raw string) (engine.Date, error) {
	raw = strings.TrimSpace(raw)
	if day, _, ok := strings.Cut(raw, "T"); ok {
		raw = day
	}
	return engine.ParseDate(raw)
}

// createdAtFromID recovers the registration time from calendar IDs of the
// form evt_<unix millis>_<seq>. Other IDs yield the zero time.
func createdAtFromID(id string) time.Time {
	parts := strings.Split(id, "_")
	if len(parts) != 3 || parts[0] != "evt" {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
