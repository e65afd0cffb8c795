package engine

import "fmt"

// TimelinesOverlap reports whether any phase of a intersects any phase of b.
func TimelinesOverlap(a, b Timeline) bool {
	for _, wa := range a.Windows() {
		for _, wb := range b.Windows() {
			if Overlaps(wa, wb) {
				return true
			}
		}
	}
	return false
}

// Violation is a broken scheduling invariant found by Validate.
type Violation struct {
	BookingID string
	OtherID   string
	Reason    string
}

func (v Violation) String() string {
	if v.OtherID == "" {
		return fmt.Sprintf("booking %s: %s", v.BookingID, v.Reason)
	}
	return fmt.Sprintf("bookings %s and %s: %s", v.BookingID, v.OtherID, v.Reason)
}

// Validate checks phase order, the minimum gap, the canonical start and the
// furnace's occupancy rules. It returns nil for a consistent schedule.
func Validate(s *FurnaceSchedule) []Violation {
	var out []Violation
	minGap := BuildOptions{MinGapHalves: s.Furnace.MinGapHalves}.minGapDays()
	ordered := s.Sorted()
	for _, b := range ordered {
		if b.Timeline == nil {
			continue
		}
		p1, p2 := b.Timeline.Phase1(), b.Timeline.Phase2()
		switch {
		case !p1.End.Before(p2.Start):
			out = append(out, Violation{BookingID: b.ID, Reason: "phase2 does not start after phase1 ends"})
		case p2.Start.DaysSince(p1.End) < minGap:
			out = append(out, Violation{BookingID: b.ID, Reason: fmt.Sprintf("gap below %d days", minGap)})
		}
		if b.StartDate != p1.Start {
			out = append(out, Violation{BookingID: b.ID, Reason: "start date differs from phase1 start"})
		}
	}

	for i, a := range ordered {
		if a.Timeline == nil {
			continue
		}
		for _, b := range ordered[i+1:] {
			if b.Timeline == nil {
				continue
			}
			if s.Furnace.DualLine() {
				if Overlaps(a.Timeline.Phase1().Window(), b.Timeline.Phase1().Window()) {
					out = append(out, Violation{BookingID: a.ID, OtherID: b.ID, Reason: "phase1 windows overlap"})
				}
				continue
			}
			if TimelinesOverlap(*a.Timeline, *b.Timeline) {
				out = append(out, Violation{BookingID: a.ID, OtherID: b.ID, Reason: "windows overlap"})
			}
		}
	}

	if s.Furnace.DualLine() {
		for _, b := range ordered {
			if b.Timeline == nil {
				continue
			}
			if err := sweep(s, *b.Timeline, b.LineUsage(s.Furnace.Capacity()), b.ID); err != nil {
				out = append(out, Violation{BookingID: b.ID, Reason: err.Error()})
			}
		}
	}
	return out
}

// CheckAvailability reports ErrUnavailable when candidate cannot be placed on the
// furnace next to its current bookings. Phase1 is exclusive on every furnace; the
// dual-line furnace additionally admits overlaps up to its line capacity.
func CheckAvailability(s *FurnaceSchedule, candidate Timeline, lines int, excludeID string) error {
	p1 := candidate.Phase1().Window()
	for _, b := range s.Sorted() {
		if b.ID == excludeID || b.Timeline == nil {
			continue
		}
		if Overlaps(p1, b.Timeline.Phase1().Window()) {
			return fmt.Errorf("%w: phase1 collides with booking %s", ErrUnavailable, b.ID)
		}
	}
	if !s.Furnace.DualLine() {
		return nil
	}
	capacity := s.Furnace.Capacity()
	return sweep(s, candidate, min(max(lines, 1), capacity), excludeID)
}

// sweep walks candidate half day by half day and sums the lines used by every
// other booking occupying the same slot.
func sweep(s *FurnaceSchedule, candidate Timeline, lines int, excludeID string) error {
	capacity := s.Furnace.Capacity()
	for _, w := range candidate.Windows() {
		for u := w.Start.Units(); u < w.End.Units(); u++ {
			slot := halfDayFromUnits(u)
			used := lines
			for _, b := range s.Bookings {
				if b.ID == excludeID || b.Timeline == nil {
					continue
				}
				for _, bw := range b.Timeline.Windows() {
					if bw.Contains(slot) {
						used += b.LineUsage(capacity)
						break
					}
				}
			}
			if used > capacity {
				return fmt.Errorf("%w: %d of %d lines in use at %s", ErrUnavailable, used, capacity, slot)
			}
		}
	}
	return nil
}
