package engine

import (
	"fmt"
	"slices"
)

// Anchor is the outcome of reconciling a new booking with its predecessor.
// When PreviousUpdated is set, Previous is the predecessor's new timeline and
// ForcedPhase2Start is the earliest day the new booking's phase2 may start.
type Anchor struct {
	ForcedPhase2Start *Date
	PreviousUpdated   bool
	Previous          Timeline
}

// ResolveAnchor decides whether a high-class booking on the single-line furnace
// forces its predecessor's phase2 to wait until the new phase1 ends. It never
// modifies next; the caller applies the returned anchor.
func (e *Engine) ResolveAnchor(f FurnaceSpec, previous *Booking, next Timeline, nextClass VoltageClass) (Anchor, error) {
	if f.DualLine() || previous == nil || previous.Timeline == nil || nextClass != VoltageHigh {
		return Anchor{}, nil
	}
	anchor := next.Phase1().End
	prevP2 := previous.Timeline.Phase2()
	if !prevP2.Start.Before(anchor) {
		return Anchor{}, nil
	}
	// Already done before the new booking starts: leave it alone.
	if !TimelinesOverlap(*previous.Timeline, next) {
		return Anchor{}, nil
	}

	rebuilt, err := e.BuildFor(f, previous.StartDate, previous.EffectiveClass(), BuildOptions{
		ForcedPhase2Start: &anchor,
		ForceExact:        true,
	})
	if err != nil {
		return Anchor{}, fmt.Errorf("anchor booking %s at %s: %w", previous.ID, anchor, err)
	}
	end := rebuilt.Phase2().End
	return Anchor{ForcedPhase2Start: &end, PreviousUpdated: true, Previous: rebuilt}, nil
}

// Settle resolves the remaining overlaps between b and its peers on the
// single-line furnace. Whichever overlapping window started later yields: a
// phase2 is pushed to start when the other window ends, a phase1 cannot move
// and makes the furnace unavailable. It returns the peers it moved.
func (e *Engine) Settle(s *FurnaceSchedule, b *Booking) ([]*Booking, error) {
	if b.Timeline == nil {
		return nil, nil
	}
	var moved []*Booking
	for i, n := 0, 2*len(s.Bookings)+1; i < n; i++ {
		progressed := false
		for _, peer := range s.Sorted() {
			if peer == b || peer.Timeline == nil || !TimelinesOverlap(*b.Timeline, *peer.Timeline) {
				continue
			}
			yielding, err := e.settlePair(s.Furnace, b, peer)
			if err != nil {
				return moved, err
			}
			if yielding == peer && !slices.Contains(moved, peer) {
				moved = append(moved, peer)
			}
			progressed = true
			break
		}
		if !progressed {
			return moved, nil
		}
	}
	return moved, fmt.Errorf("%w: booking %s does not settle", ErrUnavailable, b.ID)
}

// settlePair moves the phase2 of whichever booking entered the first overlapping
// window later and returns that booking.
func (e *Engine) settlePair(f FurnaceSpec, b, peer *Booking) (*Booking, error) {
	for i, bs := range b.Timeline.Stages {
		for j, ps := range peer.Timeline.Stages {
			bw, pw := bs.Window(), ps.Window()
			if !Overlaps(bw, pw) {
				continue
			}
			yielding, yieldingStage, until := peer, j, bs.End
			if !bw.Start.Before(pw.Start) {
				yielding, yieldingStage, until = b, i, ps.End
			}
			if yieldingStage == 0 {
				return nil, fmt.Errorf("%w: phase1 of booking %s overlaps booking %s", ErrUnavailable, yielding.ID, otherOf(yielding, b, peer).ID)
			}
			rebuilt, err := e.BuildFor(f, yielding.StartDate, yielding.EffectiveClass(), BuildOptions{
				ForcedPhase2Start: &until,
				ForceExact:        true,
			})
			if err != nil {
				return nil, fmt.Errorf("settle booking %s: %w", yielding.ID, err)
			}
			if rebuilt.Equal(*yielding.Timeline) {
				return nil, fmt.Errorf("%w: booking %s cannot move past %s", ErrUnavailable, yielding.ID, until)
			}
			yielding.SetTimeline(rebuilt)
			return yielding, nil
		}
	}
	return nil, nil
}

func otherOf(x, a, b *Booking) *Booking {
	if x == a {
		return b
	}
	return a
}
