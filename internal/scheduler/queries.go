package scheduler

import (
	"context"
	"fmt"

	"furnace-scheduler/internal/engine"
	"furnace-scheduler/internal/parse"
)

// Furnaces lists the configured furnaces.
func (s *Service) Furnaces() []engine.FurnaceSpec {
	return append([]engine.FurnaceSpec(nil), s.furnaces...)
}

// ResolveFurnace finds a furnace by ID, name or alias, ignoring case, diacritics and spacing.
func (s *Service) ResolveFurnace(label string) (engine.FurnaceSpec, error) {
	key := parse.Key(label)
	if key == "" {
		return engine.FurnaceSpec{}, fmt.Errorf("%w: empty furnace label", ErrValidation)
	}
	for _, f := range s.furnaces {
		if parse.Key(f.ID) == key || parse.Key(f.Name) == key {
			return f, nil
		}
		for _, alias := range f.Aliases {
			if parse.Key(alias) == key {
				return f, nil
			}
		}
	}
	return engine.FurnaceSpec{}, fmt.Errorf("%w: furnace %q", ErrNotFound, label)
}

// Schedule returns the furnace's bookings in start order together with any
// invariant the stored schedule breaks.
func (s *Service) Schedule(ctx context.Context, furnaceID string) ([]*engine.Booking, []engine.Violation, error) {
	f, err := s.furnace(furnaceID)
	if err != nil {
		return nil, nil, err
	}
	sched, err := s.load(ctx, f)
	if err != nil {
		return nil, nil, err
	}
	return sched.Sorted(), engine.Validate(sched), nil
}

// Booking returns one booking.
func (s *Service) Booking(ctx context.Context, furnaceID, bookingID string) (*engine.Booking, error) {
	if _, err := s.furnace(furnaceID); err != nil {
		return nil, err
	}
	b, err := s.store.GetBooking(ctx, furnaceID, bookingID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("%w: booking %s", ErrNotFound, bookingID)
	}
	return b, nil
}

// AvailabilityQuery describes a booking that has not been registered yet.
type AvailabilityQuery struct {
	StartDate engine.Date
	Class     engine.VoltageClass
	Lines     int
}

// Availability builds the timeline the booking would get and reports
// engine.ErrUnavailable when the furnace has no room for it.
func (s *Service) Availability(ctx context.Context, furnaceID string, q AvailabilityQuery) (engine.Timeline, error) {
	f, err := s.furnace(furnaceID)
	if err != nil {
		return engine.Timeline{}, err
	}
	tl, err := s.engine.BuildFor(f, q.StartDate, q.Class, engine.BuildOptions{})
	if err != nil {
		return engine.Timeline{}, err
	}
	sched, err := s.load(ctx, f)
	if err != nil {
		return engine.Timeline{}, err
	}
	return tl, engine.CheckAvailability(sched, tl, q.Lines, "")
}

// PreviewRequest asks for a timeline without touching any booking.
type PreviewRequest struct {
	FurnaceID         string
	StartDate         engine.Date
	Class             engine.VoltageClass
	ForcedPhase2Start *engine.Date
	ForceExact        bool
	FirstHalfStart    bool
}

// Preview builds a timeline with the furnace's rules. An empty furnace ID uses
// the default gap and Sunday policy.
func (s *Service) Preview(req PreviewRequest) (engine.Timeline, error) {
	var f engine.FurnaceSpec
	if req.FurnaceID != "" {
		var err error
		if f, err = s.furnace(req.FurnaceID); err != nil {
			return engine.Timeline{}, err
		}
	}
	return s.engine.BuildFor(f, req.StartDate, req.Class, engine.BuildOptions{
		ForcedPhase2Start: req.ForcedPhase2Start,
		ForceExact:        req.ForceExact,
		FirstHalfStart:    req.FirstHalfStart,
	})
}

// Harmonize re-derives the dual-line furnace's schedule and writes the bookings
// whose timelines changed. A run that changes nothing writes and notifies nothing.
func (s *Service) Harmonize(ctx context.Context, furnaceID string) (engine.HarmonizeReport, error) {
	f, err := s.furnace(furnaceID)
	if err != nil {
		return engine.HarmonizeReport{}, err
	}
	if !f.DualLine() {
		return engine.HarmonizeReport{}, fmt.Errorf("%w: furnace %s has a single line", ErrValidation, f.ID)
	}

	unlock := s.lock(f.ID)
	defer unlock()

	sched, err := s.load(ctx, f)
	if err != nil {
		return engine.HarmonizeReport{}, err
	}
	before := sched.Clone()

	report := s.engine.Harmonize(sched)
	written, err := s.commit(ctx, before, sched)
	if err != nil {
		return report, err
	}
	if written > 0 {
		s.notify(f.ID)
	}
	return report, nil
}
