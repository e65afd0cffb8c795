package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHarmonize_GapChain(t *testing.T) {
	e := quietEngine(scenarioRules())
	a := placed(t, e, dualLine, newBooking(t, "a", "2025-11-03", VoltageLow))
	b := placed(t, e, dualLine, newBooking(t, "b", "2025-11-08", VoltageLow))
	requireStage(t, a.Timeline.Phase2(), "2025-11-09", "2025-11-12")
	s := &FurnaceSchedule{Furnace: dualLine, Bookings: []*Booking{a, b}}

	report := e.Harmonize(s)
	require.Empty(t, report.Failures)
	assert.Equal(t, VoltageLow, report.GlobalClass)
	assert.Equal(t, []*Booking{a}, report.Changed)

	requireStage(t, a.Timeline.Phase1(), "2025-11-03", "2025-11-06")
	requireStage(t, b.Timeline.Phase1(), "2025-11-08", "2025-11-11")
	assert.Equal(t, b.Timeline.Phase1().End, a.Timeline.Phase2().Start)
	assert.Equal(t, a.Timeline.Phase2().End, b.Timeline.Phase2().Start)
	requireStage(t, a.Timeline.Phase2(), "2025-11-11", "2025-11-14")
	requireStage(t, b.Timeline.Phase2(), "2025-11-14", "2025-11-17")
	assert.Equal(t, a.StartDate, a.Timeline.Phase1().Start)
}

func TestHarmonize_HighClassPriority(t *testing.T) {
	e := quietEngine(nil)
	a := placed(t, e, dualLine, newBooking(t, "a", "2025-11-03", VoltageLow))
	b := placed(t, e, dualLine, newBooking(t, "b", "2025-11-06", VoltageHigh))
	s := &FurnaceSchedule{Furnace: dualLine, Bookings: []*Booking{b, a}}

	report := e.Harmonize(s)
	require.Empty(t, report.Failures)
	assert.Equal(t, VoltageHigh, report.GlobalClass)
	assert.Equal(t, []*Booking{a, b}, report.Changed)

	// a keeps its low-class lengths, only its phase2 waits for b's phase1.
	requireStage(t, a.Timeline.Phase1(), "2025-11-03", "2025-11-05")
	requireStage(t, a.Timeline.Phase2(), "2025-11-09", "2025-11-12")
	requireStage(t, b.Timeline.Phase1(), "2025-11-06", "2025-11-09")
	requireStage(t, b.Timeline.Phase2(), "2025-11-12", "2025-11-16")
	assert.Empty(t, Validate(s))
}

func TestHarmonize_Idempotent(t *testing.T) {
	e := quietEngine(nil)
	s := &FurnaceSchedule{Furnace: dualLine}
	for _, b := range []*Booking{
		newBooking(t, "a", "2025-11-03", VoltageLow),
		newBooking(t, "b", "2025-11-06", VoltageHigh),
		newBooking(t, "c", "2025-11-10", VoltageLow),
		newBooking(t, "d", "2025-11-20", VoltageLow),
	} {
		s.Bookings = append(s.Bookings, b)
	}

	first := e.Harmonize(s)
	require.Empty(t, first.Failures)
	assert.Len(t, first.Changed, 4, "bookings without a timeline always get one")
	snapshot := s.Clone()

	second := e.Harmonize(s)
	assert.Empty(t, second.Changed)
	assert.Empty(t, second.Failures)
	assert.Equal(t, snapshot, s)
}

func TestHarmonize_NoNeedlessShift(t *testing.T) {
	e := quietEngine(nil)
	a := placed(t, e, dualLine, newBooking(t, "a", "2025-11-03", VoltageLow))
	b := placed(t, e, dualLine, newBooking(t, "b", "2025-11-11", VoltageLow))
	c := placed(t, e, dualLine, newBooking(t, "c", "2025-11-27", VoltageHigh))
	before := (&FurnaceSchedule{Furnace: dualLine, Bookings: []*Booking{a, b, c}}).Clone()
	s := &FurnaceSchedule{Furnace: dualLine, Bookings: []*Booking{a, b, c}}

	report := e.Harmonize(s)
	assert.Equal(t, VoltageHigh, report.GlobalClass)
	assert.Empty(t, report.Changed)
	assert.Equal(t, before, s)
}

func TestHarmonize_RecordsFailures(t *testing.T) {
	e := quietEngine(nil)
	broken := &Booking{ID: "broken", Lines: []SerialLine{{Serial: "X1", Voltage: VoltageLow}}}
	a := newBooking(t, "a", "2025-11-03", VoltageLow)
	s := &FurnaceSchedule{Furnace: dualLine, Bookings: []*Booking{broken, a}}

	report := e.Harmonize(s)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "broken", report.Failures[0].BookingID)
	assert.True(t, errors.Is(report.Failures[0], ErrInvalidDate))
	assert.Nil(t, broken.Timeline)

	assert.Equal(t, []*Booking{a}, report.Changed)
	require.NotNil(t, a.Timeline)
	requireStage(t, a.Timeline.Phase1(), "2025-11-03", "2025-11-05")
}

func TestHarmonize_Empty(t *testing.T) {
	report := quietEngine(nil).Harmonize(&FurnaceSchedule{Furnace: dualLine})
	assert.Empty(t, report.Changed)
	assert.Empty(t, report.Failures)
}

func TestShiftFollowing(t *testing.T) {
	e := quietEngine(nil)
	a := placed(t, e, singleLine, newBooking(t, "a", "2025-11-03", VoltageLow))
	b := placed(t, e, singleLine, newBooking(t, "b", "2025-11-10", VoltageLow))
	c := newBooking(t, "c", "2025-11-20", VoltageLow)
	s := &FurnaceSchedule{Furnace: singleLine, Bookings: []*Booking{c, b, a}}

	moved := ShiftFollowing(s, day(t, "2025-11-03"), 2, "")
	assert.Equal(t, []*Booking{b, c}, moved)
	requireStage(t, a.Timeline.Phase1(), "2025-11-03", "2025-11-05")
	requireStage(t, b.Timeline.Phase1(), "2025-11-12", "2025-11-14")
	requireStage(t, b.Timeline.Phase2(), "2025-11-16", "2025-11-19")
	assert.Equal(t, day(t, "2025-11-12"), b.StartDate)
	assert.Nil(t, c.Timeline)
	assert.Equal(t, day(t, "2025-11-22"), c.StartDate)

	moved = ShiftFollowing(s, day(t, "2025-11-01"), -1, "b")
	assert.Equal(t, []*Booking{a, c}, moved)
	assert.Equal(t, day(t, "2025-11-12"), b.StartDate)

	assert.Nil(t, ShiftFollowing(s, day(t, "2025-11-01"), 0, ""))
}
