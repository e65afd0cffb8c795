package engine

import (
	"fmt"
	"slices"
)

// BookingFailure records a booking the harmonizer could not reschedule. The
// booking keeps its previous timeline.
type BookingFailure struct {
	BookingID string
	Err       error
}

func (f BookingFailure) Error() string {
	return fmt.Sprintf("booking %s: %v", f.BookingID, f.Err)
}

func (f BookingFailure) Unwrap() error { return f.Err }

// HarmonizeReport lists what a Harmonize pass changed. Changed is in start order.
type HarmonizeReport struct {
	GlobalClass VoltageClass
	Changed     []*Booking
	Failures    []BookingFailure
}

// provisional is the working state of one booking during a pass.
type provisional struct {
	booking  *Booking
	class    VoltageClass
	base     Date
	original Timeline
	built    Timeline
	chained  bool
}

// Harmonize reconciles every booking on the dual-line furnace. Overlaps are
// computed against timelines built for the highest class on the furnace, but
// each booking is finally rebuilt with its own class. Bookings whose timeline
// differs from the computed one are updated in place and reported.
//
// The result depends only on each booking's start date and lines, so a second
// pass over an unchanged schedule reports no changes.
func (e *Engine) Harmonize(s *FurnaceSchedule) HarmonizeReport {
	var report HarmonizeReport
	var work []*provisional
	for _, b := range s.Sorted() {
		class := b.EffectiveClass()
		own, err := e.BuildFor(s.Furnace, b.StartDate, class, BuildOptions{})
		if err != nil {
			report.fail(e, b, err)
			continue
		}
		work = append(work, &provisional{
			booking:  b,
			class:    class,
			base:     own.Phase1().Start,
			original: own,
			built:    own,
		})
	}
	if len(work) == 0 {
		return report
	}
	slices.SortStableFunc(work, func(a, b *provisional) int {
		return a.base.Compare(b.base)
	})

	classes := make([]VoltageClass, len(work))
	for i, p := range work {
		classes[i] = p.class
	}
	report.GlobalClass = HighestClass(classes...)
	for _, p := range work {
		if p.class == report.GlobalClass {
			continue
		}
		built, err := e.BuildFor(s.Furnace, p.base, report.GlobalClass, BuildOptions{})
		if err != nil {
			report.fail(e, p.booking, err)
			continue
		}
		p.built = built
	}

	for i, a := range work {
		for _, b := range work[i+1:] {
			e.harmonizePair(s.Furnace, a, b, &report)
		}
	}

	restoreUnconflicted(work)
	e.finalize(s.Furnace, work, &report)
	return report
}

func (e *Engine) harmonizePair(f FurnaceSpec, a, b *provisional, report *HarmonizeReport) {
	if !a.original.Phase2().End.After(b.base) && !a.built.Phase2().End.After(b.base) {
		return
	}

	if b.class == VoltageHigh &&
		!b.base.After(a.built.Phase2().End) &&
		a.built.Phase2().Start.Before(b.built.Phase1().End) {
		e.force(f, a, b.built.Phase1().End, report)
	}

	ap1, ap2 := a.built.Phase1(), a.built.Phase2()
	switch {
	case !b.base.Before(ap1.End.AddDays(1)) && !b.base.After(ap2.Start.AddDays(-1)):
		// b slots into a's idle gap: a resumes when b's phase1 ends, b's phase2
		// follows a's.
		e.force(f, a, b.built.Phase1().End, report)
		e.force(f, b, a.built.Phase2().End, report)
		a.chained, b.chained = true, true
	case !a.chained && ap2.Start.Before(b.built.Phase1().End):
		e.force(f, a, b.built.Phase1().End, report)
		e.force(f, b, a.built.Phase2().End, report)
	case !ap2.End.Before(b.built.Phase2().Start):
		e.force(f, b, ap2.End, report)
	}
}

// force rebuilds p with its own class and phase2 pinned to start on day.
func (e *Engine) force(f FurnaceSpec, p *provisional, day Date, report *HarmonizeReport) {
	built, err := e.BuildFor(f, p.base, p.class, BuildOptions{ForcedPhase2Start: &day, ForceExact: true})
	if err != nil {
		report.fail(e, p.booking, err)
		return
	}
	p.built = built
}

// restoreUnconflicted puts back the own-class timeline of every booking that
// would not overlap any other booking with it.
func restoreUnconflicted(work []*provisional) {
	for i, p := range work {
		if p.built.Equal(p.original) {
			continue
		}
		free := true
		for j, q := range work {
			if i != j && TimelinesOverlap(p.original, q.built) {
				free = false
				break
			}
		}
		if free {
			p.built = p.original
		}
	}
}

// finalize walks the bookings in start order and rebuilds each one with its own
// class, never letting its phase2 start before the previous booking's phase2 ends.
func (e *Engine) finalize(f FurnaceSpec, work []*provisional, report *HarmonizeReport) {
	var prev *Timeline
	for _, p := range work {
		target := p.built.Phase2().Start
		if prev != nil && !prev.Phase2().End.Before(target) {
			target = prev.Phase2().End
		}
		final, err := e.BuildFor(f, p.base, p.class, BuildOptions{ForcedPhase2Start: &target, ForceExact: true})
		if err != nil {
			report.fail(e, p.booking, err)
			if p.booking.Timeline != nil {
				prev = p.booking.Timeline
			}
			continue
		}
		if p.booking.Timeline == nil || !p.booking.Timeline.Equal(final) || p.booking.StartDate != final.Phase1().Start {
			p.booking.SetTimeline(final)
			report.Changed = append(report.Changed, p.booking)
		}
		prev = p.booking.Timeline
	}
}

func (r *HarmonizeReport) fail(e *Engine, b *Booking, err error) {
	for _, f := range r.Failures {
		if f.BookingID == b.ID {
			return
		}
	}
	e.logger.Printf("harmonize: booking %s kept its timeline: %v", b.ID, err)
	r.Failures = append(r.Failures, BookingFailure{BookingID: b.ID, Err: err})
}
