package scheduler

import (
	"context"
	"fmt"
	"log"
	"slices"

	"furnace-scheduler/internal/engine"
)

// ImportResult summarizes one import run.
type ImportResult struct {
	Created  int
	Skipped  int
	Failures []engine.BookingFailure
}

// Import stores bookings that are not known yet. Their timelines are rebuilt
// from start date and class. On the single-line furnace each booking is anchored
// and settled in start order; dual-line furnaces are harmonized once afterwards.
// Bookings that cannot be placed are reported in Failures. Each touched furnace
// is notified once.
func (s *Service) Import(ctx context.Context, bookings []*engine.Booking) (ImportResult, error) {
	var result ImportResult
	byFurnace := make(map[string][]*engine.Booking)
	var order []string
	for _, b := range bookings {
		if _, ok := byFurnace[b.FurnaceID]; !ok {
			order = append(order, b.FurnaceID)
		}
		byFurnace[b.FurnaceID] = append(byFurnace[b.FurnaceID], b)
	}

	for _, furnaceID := range order {
		f, err := s.furnace(furnaceID)
		if err != nil {
			for _, b := range byFurnace[furnaceID] {
				result.Failures = append(result.Failures, engine.BookingFailure{BookingID: b.ID, Err: err})
			}
			continue
		}
		if err := s.importFurnace(ctx, f, byFurnace[furnaceID], &result); err != nil {
			return result, err
		}
	}
	for _, failure := range result.Failures {
		log.Printf("import: %v", failure)
	}
	return result, nil
}

func (s *Service) importFurnace(ctx context.Context, f engine.FurnaceSpec, bookings []*engine.Booking, result *ImportResult) error {
	unlock := s.lock(f.ID)
	defer unlock()

	sched, err := s.load(ctx, f)
	if err != nil {
		return err
	}
	before := sched.Clone()

	incoming := slices.Clone(bookings)
	slices.SortStableFunc(incoming, func(a, b *engine.Booking) int {
		return a.StartDate.Compare(b.StartDate)
	})

	var created []string
	for _, in := range incoming {
		if in.ID == "" || sched.Find(in.ID) != nil {
			result.Skipped++
			continue
		}
		b := in.Clone()
		if b.CreatedAt.IsZero() {
			b.CreatedAt = s.now()
		}
		tl, err := s.engine.Own(f, b)
		if err != nil {
			result.Failures = append(result.Failures, engine.BookingFailure{BookingID: b.ID, Err: err})
			continue
		}
		b.SetTimeline(tl)
		if f.DualLine() {
			sched.Bookings = append(sched.Bookings, b)
			created = append(created, b.ID)
			continue
		}

		// Single line: anchor and settle each booking as a registration would.
		trial := sched.Clone()
		trial.Bookings = append(trial.Bookings, b)
		err = s.reconcileSingleLine(trial, b)
		if err == nil {
			err = checkConsistent(sched, trial)
		}
		if err != nil {
			result.Failures = append(result.Failures, engine.BookingFailure{BookingID: b.ID, Err: err})
			continue
		}
		sched = trial
		created = append(created, b.ID)
	}

	if f.DualLine() {
		report := s.engine.Harmonize(sched)
		result.Failures = append(result.Failures, report.Failures...)
	}
	if err := checkConsistent(before, sched); err != nil {
		for _, id := range created {
			result.Failures = append(result.Failures, engine.BookingFailure{BookingID: id, Err: err})
		}
		return nil
	}

	written, err := s.commit(ctx, before, sched)
	if err != nil {
		return fmt.Errorf("import into furnace %s: %w", f.ID, err)
	}
	result.Created += len(created)
	if written > 0 {
		s.notify(f.ID)
	}
	return nil
}
