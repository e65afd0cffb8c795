package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stamp = time.Date(2025, time.November, 3, 8, 0, 0, 0, time.UTC)

func TestStatusFlow(t *testing.T) {
	next, ok := StatusPlanned.Next()
	assert.True(t, ok)
	assert.Equal(t, StatusRegistered, next)

	_, ok = StatusDone.Next()
	assert.False(t, ok)
	_, ok = StatusDelayed.Next()
	assert.False(t, ok)

	parsed, err := ParseStatus("in_progress")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, parsed)
	_, err = ParseStatus("Đang thực hiện")
	assert.Error(t, err)

	assert.Equal(t, StatusDelayed, DeriveStatus([]SerialLine{{Status: StatusDone}, {Status: StatusDelayed}}))
	assert.Equal(t, StatusInProgress, DeriveStatus([]SerialLine{{Status: StatusRegistered}, {Status: StatusInProgress}}))
	assert.Equal(t, StatusPlanned, DeriveStatus(nil))
}

func TestBookingEffectiveClass(t *testing.T) {
	assert.Equal(t, VoltageLow, (&Booking{}).EffectiveClass())
	b := newBooking(t, "a", "2025-11-03", VoltageLow, VoltageHigh)
	assert.Equal(t, VoltageHigh, b.EffectiveClass())
	assert.Equal(t, 2, b.LineUsage(2))
	assert.Equal(t, 1, b.LineUsage(1))
	assert.Equal(t, 1, (&Booking{}).LineUsage(2))
}

func TestBookingMergeLines(t *testing.T) {
	b := &Booking{ID: "a"}
	b.SetLines([]SerialLine{{Serial: " t-101 ", Voltage: VoltageLow}}, "planner", stamp)
	require.Len(t, b.Lines, 1)
	assert.Equal(t, "t-101", b.Lines[0].Serial)
	assert.Equal(t, 1, b.Lines[0].LineIndex)
	require.Len(t, b.Lines[0].History, 1)
	assert.Equal(t, "planner", b.Lines[0].History[0].Actor)

	err := b.MergeLines([]SerialLine{
		{Serial: "T-101", Voltage: VoltageHigh},
		{Serial: "T-202", Voltage: VoltageHigh},
	}, 2, "planner", stamp)
	require.NoError(t, err)
	require.Len(t, b.Lines, 2)
	assert.Equal(t, VoltageLow, b.Lines[0].Voltage, "duplicate serial is ignored")
	assert.Equal(t, "T-202", b.Lines[1].Serial)
	assert.Equal(t, 2, b.Lines[1].LineIndex)
	assert.Equal(t, VoltageHigh, b.EffectiveClass())

	err = b.MergeLines([]SerialLine{{Serial: "T-303", Voltage: VoltageLow}}, 2, "planner", stamp)
	assert.True(t, errors.Is(err, ErrLineLimit))
	assert.Len(t, b.Lines, 2)
}

func TestBookingStatusUpdates(t *testing.T) {
	b := &Booking{ID: "a"}
	b.SetLines([]SerialLine{{Serial: "T-1"}, {Serial: "T-2"}}, "planner", stamp)

	require.NoError(t, b.AdvanceLine(1, "operator", stamp))
	assert.Equal(t, StatusRegistered, b.Lines[0].Status)
	assert.Equal(t, StatusPlanned, b.Lines[1].Status)
	assert.Equal(t, StatusRegistered, b.Status)
	require.Len(t, b.History, 1)

	require.NoError(t, b.AdvanceLine(0, "operator", stamp))
	assert.Equal(t, StatusInProgress, b.Lines[0].Status)
	assert.Equal(t, StatusRegistered, b.Lines[1].Status)

	require.NoError(t, b.SetDelayed(2, true, "operator", stamp))
	assert.Equal(t, StatusDelayed, b.Status)

	// Delayed lines do not advance.
	require.NoError(t, b.AdvanceLine(2, "operator", stamp))
	assert.Equal(t, StatusDelayed, b.Lines[1].Status)

	require.NoError(t, b.SetDelayed(2, false, "operator", stamp))
	assert.Equal(t, StatusRegistered, b.Lines[1].Status)
	assert.Equal(t, StatusInProgress, b.Status)

	assert.Error(t, b.AdvanceLine(3, "operator", stamp))
}

func TestFurnaceScheduleQueries(t *testing.T) {
	e := quietEngine(nil)
	a := placed(t, e, singleLine, newBooking(t, "a", "2025-11-03", VoltageLow))
	b := placed(t, e, singleLine, newBooking(t, "b", "2025-11-10", VoltageLow))
	c := newBooking(t, "c", "2025-11-10", VoltageLow)
	s := &FurnaceSchedule{Furnace: singleLine, Bookings: []*Booking{b, c, a}}

	assert.Equal(t, []*Booking{a, b, c}, s.Sorted())
	assert.Same(t, b, s.Find("b"))
	assert.Nil(t, s.Find("zzz"))

	assert.Same(t, a, s.Previous(day(t, "2025-11-10"), ""))
	assert.Nil(t, s.Previous(day(t, "2025-11-03"), ""))
	assert.Same(t, b, s.Previous(day(t, "2025-11-11"), "c"))

	clone := s.Clone()
	clone.Find("a").Timeline.Stages[0].DurationDays = 99
	assert.Equal(t, 3, a.Timeline.Phase1().DurationDays)

	assert.Same(t, c, s.Remove("c"))
	assert.Len(t, s.Bookings, 2)
	assert.Nil(t, s.Remove("c"))
}
