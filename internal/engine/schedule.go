package engine

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// FurnaceSpec describes one schedulable furnace.
type FurnaceSpec struct {
	ID                         string   `json:"id"`
	Name                       string   `json:"name"`
	Lines                      int      `json:"lines"`
	MinGapHalves               int      `json:"minGapHalves"`
	AllowSundaySecondHalfStart bool     `json:"allowSundaySecondHalfStart"`
	Aliases                    []string `json:"aliases,omitempty"`
}

func (f FurnaceSpec) DualLine() bool { return f.Lines >= 2 }

func (f FurnaceSpec) Capacity() int {
	if f.Lines < 1 {
		return 1
	}
	return f.Lines
}

// SerialLine is one transformer occupying a furnace line.
type SerialLine struct {
	Serial    string        `json:"serial"`
	Voltage   VoltageClass  `json:"voltage"`
	LineIndex int           `json:"lineIndex"`
	Status    Status        `json:"status"`
	History   []StatusEntry `json:"history,omitempty"`
}

// Booking is one registration on a furnace.
type Booking struct {
	ID         string        `json:"id"`
	FurnaceID  string        `json:"furnaceId"`
	StartDate  Date          `json:"startDate"`
	Registrant string        `json:"registrant,omitempty"`
	Lines      []SerialLine  `json:"lines"`
	Timeline   *Timeline     `json:"timeline,omitempty"`
	Status     Status        `json:"status"`
	History    []StatusEntry `json:"history,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// EffectiveClass is the highest voltage class among the booking's lines.
func (b *Booking) EffectiveClass() VoltageClass {
	if len(b.Lines) == 0 {
		return VoltageLow
	}
	out := b.Lines[0].Voltage
	for _, l := range b.Lines[1:] {
		if l.Voltage > out {
			out = l.Voltage
		}
	}
	return out
}

// Start is the phase1 start once a timeline exists, the requested date before that.
func (b *Booking) Start() Date {
	if b.Timeline != nil {
		return b.Timeline.Phase1().Start
	}
	return b.StartDate
}

// SetTimeline replaces the timeline and realigns the canonical start date with it.
func (b *Booking) SetTimeline(t Timeline) {
	t = t.Clone()
	b.Timeline = &t
	b.StartDate = t.Phase1().Start
}

// LineUsage is the number of furnace lines the booking occupies.
func (b *Booking) LineUsage(capacity int) int {
	n := len(b.Lines)
	if n < 1 {
		n = 1
	}
	return min(n, max(capacity, 1))
}

// SetLines replaces the serial lines, renumbering them and stamping initial history.
func (b *Booking) SetLines(lines []SerialLine, actor string, at time.Time) {
	b.Lines = b.Lines[:0:0]
	for _, l := range lines {
		b.Lines = append(b.Lines, stampLine(l, len(b.Lines)+1, actor, at))
	}
	b.Status = DeriveStatus(b.Lines)
}

// MergeLines adds lines to the booking, skipping serials it already carries.
func (b *Booking) MergeLines(lines []SerialLine, capacity int, actor string, at time.Time) error {
	seen := make(map[string]bool, len(b.Lines))
	for _, l := range b.Lines {
		seen[serialKey(l.Serial)] = true
	}
	merged := slices.Clone(b.Lines)
	for _, l := range lines {
		key := serialKey(l.Serial)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, stampLine(l, len(merged)+1, actor, at))
	}
	if len(merged) > capacity {
		return fmt.Errorf("%w: %d lines on a furnace with %d", ErrLineLimit, len(merged), capacity)
	}
	for i := range merged {
		merged[i].LineIndex = i + 1
	}
	b.Lines = merged
	b.Status = DeriveStatus(b.Lines)
	return nil
}

func stampLine(l SerialLine, index int, actor string, at time.Time) SerialLine {
	l.Serial = strings.TrimSpace(l.Serial)
	l.LineIndex = index
	if len(l.History) == 0 {
		l.History = []StatusEntry{{Status: l.Status, Actor: actor, At: at}}
	}
	return l
}

func serialKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// AdvanceLine moves one line (or every line when index is 0) a step along the flow.
// Delayed lines stay delayed until resumed.
func (b *Booking) AdvanceLine(index int, actor string, at time.Time) error {
	return b.updateLines(index, actor, at, func(l SerialLine) (Status, bool) {
		if l.Status == StatusDelayed {
			return l.Status, false
		}
		return l.Status.Next()
	})
}

// SetDelayed marks lines as delayed, or resumes them at their last status before the delay.
func (b *Booking) SetDelayed(index int, delayed bool, actor string, at time.Time) error {
	return b.updateLines(index, actor, at, func(l SerialLine) (Status, bool) {
		switch {
		case delayed:
			return StatusDelayed, l.Status != StatusDelayed
		case l.Status == StatusDelayed:
			return lastBeforeDelay(l.History), true
		}
		return l.Status, false
	})
}

func (b *Booking) updateLines(index int, actor string, at time.Time, step func(SerialLine) (Status, bool)) error {
	found := false
	for i := range b.Lines {
		l := &b.Lines[i]
		if index != 0 && l.LineIndex != index {
			continue
		}
		found = true
		next, ok := step(*l)
		if !ok {
			continue
		}
		l.Status = next
		l.History = append(l.History, StatusEntry{Status: next, Actor: actor, At: at})
	}
	if !found {
		return fmt.Errorf("booking %s has no line %d", b.ID, index)
	}
	if derived := DeriveStatus(b.Lines); derived != b.Status {
		b.Status = derived
		b.History = append(b.History, StatusEntry{Status: derived, Actor: actor, At: at})
	}
	return nil
}

func lastBeforeDelay(history []StatusEntry) Status {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Status != StatusDelayed {
			return history[i].Status
		}
	}
	return StatusPlanned
}

// Clone returns a deep copy of b.
func (b *Booking) Clone() *Booking {
	out := *b
	out.Lines = slices.Clone(b.Lines)
	for i := range out.Lines {
		out.Lines[i].History = slices.Clone(b.Lines[i].History)
	}
	out.History = slices.Clone(b.History)
	if b.Timeline != nil {
		t := b.Timeline.Clone()
		out.Timeline = &t
	}
	return &out
}

// FurnaceSchedule is every booking on one furnace. Engine calls operate on it
// explicitly; there is no shared furnace state.
type FurnaceSchedule struct {
	Furnace  FurnaceSpec
	Bookings []*Booking
}

// Sorted returns the bookings by ascending start, keeping insertion order on ties.
func (s *FurnaceSchedule) Sorted() []*Booking {
	out := slices.Clone(s.Bookings)
	slices.SortStableFunc(out, func(a, b *Booking) int {
		return a.Start().Compare(b.Start())
	})
	return out
}

func (s *FurnaceSchedule) Find(id string) *Booking {
	for _, b := range s.Bookings {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// Previous is the latest booking starting strictly before start.
func (s *FurnaceSchedule) Previous(start Date, excludeID string) *Booking {
	var prev *Booking
	for _, b := range s.Sorted() {
		if b.ID == excludeID {
			continue
		}
		if !b.Start().Before(start) {
			break
		}
		prev = b
	}
	return prev
}

func (s *FurnaceSchedule) Remove(id string) *Booking {
	for i, b := range s.Bookings {
		if b.ID == id {
			s.Bookings = slices.Delete(s.Bookings, i, i+1)
			return b
		}
	}
	return nil
}

func (s *FurnaceSchedule) Clone() *FurnaceSchedule {
	out := &FurnaceSchedule{Furnace: s.Furnace, Bookings: make([]*Booking, len(s.Bookings))}
	for i, b := range s.Bookings {
		out.Bookings[i] = b.Clone()
	}
	return out
}
