package engine

import (
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/require"
)

// Monday 2025-11-03 anchors most fixtures; 2025-11-09 is a Sunday.

func day(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func quietEngine(rules RuleTable) *Engine {
	return New(rules, log.New(io.Discard, "", 0))
}

// scenarioRules is the table the dated acceptance scenarios are written against.
func scenarioRules() RuleTable {
	return RuleTable{
		VoltageLow:  {Phase1Halves: 6, Phase2Halves: 6, GapDays: 3},
		VoltageHigh: {Phase1Halves: 16, Phase2Halves: 8, GapDays: 3},
	}
}

var (
	singleLine = FurnaceSpec{ID: "lo1", Name: "Furnace 1", Lines: 1}
	dualLine   = FurnaceSpec{ID: "lo2", Name: "Furnace 2", Lines: 2, AllowSundaySecondHalfStart: true}
)

func newBooking(t *testing.T, id, start string, classes ...VoltageClass) *Booking {
	t.Helper()
	b := &Booking{ID: id, StartDate: day(t, start)}
	for i, c := range classes {
		b.Lines = append(b.Lines, SerialLine{Serial: id + "-" + c.String(), Voltage: c, LineIndex: i + 1})
	}
	return b
}

// placed gives b the timeline it would get on its own.
func placed(t *testing.T, e *Engine, f FurnaceSpec, b *Booking) *Booking {
	t.Helper()
	tl, err := e.Own(f, b)
	require.NoError(t, err)
	b.SetTimeline(tl)
	return b
}

func requireStage(t *testing.T, s Stage, start, end string) {
	t.Helper()
	require.Equal(t, day(t, start), s.Start, "%s start", s.ID)
	require.Equal(t, day(t, end), s.End, "%s end", s.ID)
}
