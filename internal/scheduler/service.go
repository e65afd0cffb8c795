package scheduler

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"furnace-scheduler/internal/engine"
)

// Notifier is told once per logical operation that a furnace's bookings changed.
type Notifier interface {
	BookingsChanged(furnaceID string)
}

// EventStore is the booking persistence the service needs.
type EventStore interface {
	BookingsForFurnace(ctx context.Context, furnaceID string) ([]engine.Booking, error)
	GetBooking(ctx context.Context, furnaceID, bookingID string) (*engine.Booking, error)
	CreateBooking(ctx context.Context, b *engine.Booking) error
	UpdateBooking(ctx context.Context, furnaceID string, b *engine.Booking) (*engine.Booking, error)
	DeleteBooking(ctx context.Context, furnaceID, bookingID string) (*engine.Booking, error)
}

// Service runs scheduling operations against the store. Operations on the same
// furnace are serialized; each one loads the furnace, computes the new schedule
// in memory and writes only the bookings that changed.
type Service struct {
	store    EventStore
	engine   *engine.Engine
	notifier Notifier
	furnaces []engine.FurnaceSpec

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	now   func() time.Time
	newID func() string
}

func NewService(store EventStore, eng *engine.Engine, notifier Notifier, furnaces []engine.FurnaceSpec) *Service {
	return &Service{
		store:    store,
		engine:   eng,
		notifier: notifier,
		furnaces: furnaces,
		locks:    make(map[string]*sync.Mutex),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (s *Service) Engine() *engine.Engine {
	return s.engine
}

func (s *Service) lock(furnaceID string) func() {
	s.mu.Lock()
	l, ok := s.locks[furnaceID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[furnaceID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *Service) furnace(furnaceID string) (engine.FurnaceSpec, error) {
	for _, f := range s.furnaces {
		if f.ID == furnaceID {
			return f, nil
		}
	}
	return engine.FurnaceSpec{}, fmt.Errorf("%w: furnace %q", ErrNotFound, furnaceID)
}

func (s *Service) load(ctx context.Context, f engine.FurnaceSpec) (*engine.FurnaceSchedule, error) {
	rows, err := s.store.BookingsForFurnace(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	sched := &engine.FurnaceSchedule{Furnace: f, Bookings: make([]*engine.Booking, len(rows))}
	for i := range rows {
		sched.Bookings[i] = &rows[i]
	}
	return sched, nil
}

// commit writes every booking of after that is new or differs from its copy in before.
func (s *Service) commit(ctx context.Context, before, after *engine.FurnaceSchedule) (int, error) {
	written := 0
	for _, b := range after.Sorted() {
		old := before.Find(b.ID)
		if old == nil {
			if err := s.store.CreateBooking(ctx, b); err != nil {
				return written, fmt.Errorf("failed to create booking %s: %w", b.ID, err)
			}
			written++
			continue
		}
		if reflect.DeepEqual(old, b) {
			continue
		}
		updated, err := s.store.UpdateBooking(ctx, after.Furnace.ID, b)
		if err != nil {
			return written, fmt.Errorf("failed to update booking %s: %w", b.ID, err)
		}
		if updated == nil {
			return written, fmt.Errorf("%w: booking %s vanished during update", ErrConflict, b.ID)
		}
		written++
	}
	return written, nil
}

func (s *Service) notify(furnaceID string) {
	if s.notifier != nil {
		s.notifier.BookingsChanged(furnaceID)
	}
}

// checkConsistent rejects a schedule that breaks an invariant the stored one kept.
func checkConsistent(before, after *engine.FurnaceSchedule) error {
	known := make(map[string]bool)
	for _, v := range engine.Validate(before) {
		known[v.String()] = true
	}
	for _, v := range engine.Validate(after) {
		if !known[v.String()] {
			return fmt.Errorf("%w: %s", ErrConflict, v)
		}
	}
	return nil
}

