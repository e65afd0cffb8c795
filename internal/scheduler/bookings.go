package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"furnace-scheduler/internal/engine"
)

// RegisterRequest creates a booking. An empty ID gets a generated one.
type RegisterRequest struct {
	ID         string
	StartDate  engine.Date
	Registrant string
	Lines      []engine.SerialLine
	Actor      string
}

// EditRequest changes a booking. Nil fields are left as they are.
type EditRequest struct {
	StartDate  *engine.Date
	Registrant *string
	Lines      []engine.SerialLine
	Actor      string
}

type StatusAction string

const (
	ActionAdvance StatusAction = "advance"
	ActionDelay   StatusAction = "delay"
	ActionResume  StatusAction = "resume"
)

// StatusRequest moves one line, or every line when LineIndex is 0.
type StatusRequest struct {
	Action    StatusAction
	LineIndex int
	Actor     string
}

// Register places a new booking and reconciles the furnace around it.
func (s *Service) Register(ctx context.Context, furnaceID string, req RegisterRequest) (*engine.Booking, error) {
	f, err := s.furnace(furnaceID)
	if err != nil {
		return nil, err
	}
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("%w: at least one serial line is required", ErrValidation)
	}

	unlock := s.lock(f.ID)
	defer unlock()

	sched, err := s.load(ctx, f)
	if err != nil {
		return nil, err
	}
	before := sched.Clone()

	id := req.ID
	if id == "" {
		id = s.newID()
	} else if sched.Find(id) != nil {
		return nil, fmt.Errorf("%w: booking %s already exists", ErrConflict, id)
	}
	now := s.now()
	b := &engine.Booking{
		ID:         id,
		FurnaceID:  f.ID,
		StartDate:  req.StartDate,
		Registrant: strings.TrimSpace(req.Registrant),
		CreatedAt:  now,
	}
	if err := b.MergeLines(req.Lines, f.Capacity(), req.Actor, now); err != nil {
		return nil, err
	}
	if len(b.Lines) == 0 {
		return nil, fmt.Errorf("%w: serial lines have no serial numbers", ErrValidation)
	}

	if err := s.place(sched, b); err != nil {
		return nil, err
	}
	sched.Bookings = append(sched.Bookings, b)

	if err := s.reconcile(sched, before, b); err != nil {
		return nil, err
	}
	if _, err := s.commit(ctx, before, sched); err != nil {
		return nil, err
	}
	s.notify(f.ID)
	return b.Clone(), nil
}

// Edit changes a booking's start date, registrant or lines. A moved start
// cascades to every later booking by the same number of days.
func (s *Service) Edit(ctx context.Context, furnaceID, bookingID string, req EditRequest) (*engine.Booking, error) {
	f, err := s.furnace(furnaceID)
	if err != nil {
		return nil, err
	}

	unlock := s.lock(f.ID)
	defer unlock()

	sched, err := s.load(ctx, f)
	if err != nil {
		return nil, err
	}
	before := sched.Clone()

	b := sched.Find(bookingID)
	if b == nil {
		return nil, fmt.Errorf("%w: booking %s", ErrNotFound, bookingID)
	}
	oldStart, oldClass := b.Start(), b.EffectiveClass()
	oldPrev := sched.Previous(oldStart, b.ID)

	if req.Registrant != nil {
		b.Registrant = strings.TrimSpace(*req.Registrant)
	}
	if req.Lines != nil {
		if err := replaceLines(b, req.Lines, f.Capacity(), req.Actor, s.now()); err != nil {
			return nil, err
		}
	}
	if req.StartDate != nil {
		b.StartDate = *req.StartDate
	}

	tl, err := s.engine.Own(f, b)
	if err != nil {
		return nil, err
	}
	if delta := tl.Phase1().Start.DaysSince(oldStart); delta != 0 {
		moved := engine.ShiftFollowing(sched, oldStart, delta, b.ID)
		if len(moved) > 0 {
			log.Printf("furnace %s: booking %s moved %+d days, shifting %d later bookings", f.ID, b.ID, delta, len(moved))
		}
	}
	if err := engine.CheckAvailability(sched, tl, b.LineUsage(f.Capacity()), b.ID); err != nil {
		return nil, err
	}
	b.SetTimeline(tl)
	downgraded := oldClass == engine.VoltageHigh && b.EffectiveClass() < oldClass
	if !f.DualLine() && (downgraded || b.Start() != oldStart) {
		// The old predecessor is no longer held back; reconcile anchors the new one.
		s.restoreOwn(sched, oldPrev)
	}

	if err := s.reconcile(sched, before, b); err != nil {
		return nil, err
	}
	written, err := s.commit(ctx, before, sched)
	if err != nil {
		return nil, err
	}
	if written > 0 {
		s.notify(f.ID)
	}
	return b.Clone(), nil
}

// Delete removes a booking. On the single-line furnace the previous booking gets
// back the timeline it would have had without the deleted one; the dual-line
// furnace is harmonized again.
func (s *Service) Delete(ctx context.Context, furnaceID, bookingID string) (*engine.Booking, error) {
	f, err := s.furnace(furnaceID)
	if err != nil {
		return nil, err
	}

	unlock := s.lock(f.ID)
	defer unlock()

	sched, err := s.load(ctx, f)
	if err != nil {
		return nil, err
	}
	before := sched.Clone()

	b := sched.Remove(bookingID)
	if b == nil {
		return nil, fmt.Errorf("%w: booking %s", ErrNotFound, bookingID)
	}
	if f.DualLine() {
		s.engine.Harmonize(sched)
	} else {
		s.restoreOwn(sched, sched.Previous(b.Start(), b.ID))
	}

	removed, err := s.store.DeleteBooking(ctx, f.ID, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete booking %s: %w", bookingID, err)
	}
	if removed == nil {
		return nil, fmt.Errorf("%w: booking %s", ErrNotFound, bookingID)
	}
	if _, err := s.commit(ctx, before, sched); err != nil {
		return nil, err
	}
	s.notify(f.ID)
	return removed, nil
}

// AddLines adds serial lines to a booking on a dual-line furnace. The furnace is
// harmonized afterwards, so a line that upgrades the booking to the high class
// moves its predecessor's phase2 to the booking's new phase1 end.
func (s *Service) AddLines(ctx context.Context, furnaceID, bookingID string, lines []engine.SerialLine, actor string) (*engine.Booking, error) {
	f, err := s.furnace(furnaceID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: no serial lines to add", ErrValidation)
	}

	unlock := s.lock(f.ID)
	defer unlock()

	sched, err := s.load(ctx, f)
	if err != nil {
		return nil, err
	}
	before := sched.Clone()

	b := sched.Find(bookingID)
	if b == nil {
		return nil, fmt.Errorf("%w: booking %s", ErrNotFound, bookingID)
	}
	for _, l := range b.Lines {
		if l.Status == engine.StatusInProgress || l.Status == engine.StatusDone {
			return nil, fmt.Errorf("%w: booking %s is already %s", ErrConflict, b.ID, l.Status)
		}
	}
	if err := b.MergeLines(lines, f.Capacity(), actor, s.now()); err != nil {
		return nil, err
	}

	// Capacity is judged on the reconciled schedule: harmonizing is what makes room.
	tl, err := s.engine.Own(f, b)
	if err != nil {
		return nil, err
	}
	b.SetTimeline(tl)

	if err := s.reconcile(sched, before, b); err != nil {
		return nil, err
	}
	written, err := s.commit(ctx, before, sched)
	if err != nil {
		return nil, err
	}
	if written > 0 {
		s.notify(f.ID)
	}
	return b.Clone(), nil
}

// UpdateStatus advances, delays or resumes serial lines. Timelines are not touched.
func (s *Service) UpdateStatus(ctx context.Context, furnaceID, bookingID string, req StatusRequest) (*engine.Booking, error) {
	f, err := s.furnace(furnaceID)
	if err != nil {
		return nil, err
	}

	unlock := s.lock(f.ID)
	defer unlock()

	b, err := s.store.GetBooking(ctx, f.ID, bookingID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("%w: booking %s", ErrNotFound, bookingID)
	}

	now := s.now()
	switch req.Action {
	case ActionAdvance:
		err = b.AdvanceLine(req.LineIndex, req.Actor, now)
	case ActionDelay:
		err = b.SetDelayed(req.LineIndex, true, req.Actor, now)
	case ActionResume:
		err = b.SetDelayed(req.LineIndex, false, req.Actor, now)
	default:
		err = fmt.Errorf("unknown status action %q", req.Action)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	updated, err := s.store.UpdateBooking(ctx, f.ID, b)
	if err != nil {
		return nil, fmt.Errorf("failed to update booking %s: %w", b.ID, err)
	}
	if updated == nil {
		return nil, fmt.Errorf("%w: booking %s", ErrNotFound, bookingID)
	}
	s.notify(f.ID)
	return updated, nil
}

// place gives b its own-class timeline if the furnace has room for it.
func (s *Service) place(sched *engine.FurnaceSchedule, b *engine.Booking) error {
	tl, err := s.engine.Own(sched.Furnace, b)
	if err != nil {
		return err
	}
	if err := engine.CheckAvailability(sched, tl, b.LineUsage(sched.Furnace.Capacity()), b.ID); err != nil {
		return err
	}
	b.SetTimeline(tl)
	return nil
}

// reconcile resolves b against its peers and rejects the result if it breaks an invariant.
func (s *Service) reconcile(sched, before *engine.FurnaceSchedule, b *engine.Booking) error {
	if sched.Furnace.DualLine() {
		report := s.engine.Harmonize(sched)
		for _, failure := range report.Failures {
			if failure.BookingID == b.ID {
				return fmt.Errorf("%w: %w", ErrConflict, failure)
			}
		}
	} else if err := s.reconcileSingleLine(sched, b); err != nil {
		return err
	}
	return checkConsistent(before, sched)
}

func (s *Service) reconcileSingleLine(sched *engine.FurnaceSchedule, b *engine.Booking) error {
	prev := sched.Previous(b.Start(), b.ID)
	anchor, err := s.engine.ResolveAnchor(sched.Furnace, prev, *b.Timeline, b.EffectiveClass())
	if err != nil {
		return err
	}
	if err := s.applyAnchor(sched.Furnace, prev, b, anchor); err != nil {
		return err
	}
	moved, err := s.engine.Settle(sched, b)
	if err != nil {
		return err
	}
	for _, m := range moved {
		log.Printf("furnace %s: booking %s phase2 moved to %s", sched.Furnace.ID, m.ID, m.Timeline.Phase2().Start)
	}
	return nil
}

// applyAnchor writes the predecessor's anchored timeline and keeps b's phase2
// from starting before the predecessor's phase2 ends.
func (s *Service) applyAnchor(f engine.FurnaceSpec, prev, b *engine.Booking, anchor engine.Anchor) error {
	if !anchor.PreviousUpdated {
		return nil
	}
	prev.SetTimeline(anchor.Previous)
	if anchor.ForcedPhase2Start == nil || !b.Timeline.Phase2().Start.Before(*anchor.ForcedPhase2Start) {
		return nil
	}
	rebuilt, err := s.engine.BuildFor(f, b.StartDate, b.EffectiveClass(), engine.BuildOptions{
		ForcedPhase2Start: anchor.ForcedPhase2Start,
	})
	if err != nil {
		return fmt.Errorf("booking %s after anchor: %w", b.ID, err)
	}
	b.SetTimeline(rebuilt)
	return nil
}

// restoreOwn gives b back its own-class timeline when that fits between its peers.
func (s *Service) restoreOwn(sched *engine.FurnaceSchedule, b *engine.Booking) {
	if b == nil || b.Timeline == nil {
		return
	}
	own, err := s.engine.Own(sched.Furnace, b)
	if err != nil {
		log.Printf("furnace %s: cannot rebuild booking %s: %v", sched.Furnace.ID, b.ID, err)
		return
	}
	if own.Equal(*b.Timeline) {
		return
	}
	for _, peer := range sched.Bookings {
		if peer != b && peer.Timeline != nil && engine.TimelinesOverlap(own, *peer.Timeline) {
			return
		}
	}
	b.SetTimeline(own)
}

// replaceLines swaps in a new set of lines, keeping the status history of serials the booking already had.
func replaceLines(b *engine.Booking, lines []engine.SerialLine, capacity int, actor string, at time.Time) error {
	existing := make(map[string]engine.SerialLine, len(b.Lines))
	for _, l := range b.Lines {
		existing[lineKey(l.Serial)] = l
	}
	seen := make(map[string]bool, len(lines))
	var next []engine.SerialLine
	for _, l := range lines {
		key := lineKey(l.Serial)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if old, ok := existing[key]; ok {
			l.Status, l.History = old.Status, old.History
		}
		next = append(next, l)
	}
	if len(next) == 0 {
		return fmt.Errorf("%w: at least one serial line is required", ErrValidation)
	}
	if len(next) > capacity {
		return fmt.Errorf("%w: %d lines on a furnace with %d", engine.ErrLineLimit, len(next), capacity)
	}
	b.SetLines(next, actor, at)
	return nil
}

func lineKey(serial string) string {
	return strings.ToUpper(strings.TrimSpace(serial))
}
