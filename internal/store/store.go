package store

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"furnace-scheduler/internal/engine"
	"furnace-scheduler/internal/model"
)

// ErrNotFound is returned by lookups that have no nil-on-miss contract.
var ErrNotFound = errors.New("record not found")

// Store defines the interface for all database operations.
type Store interface {
	Furnaces(ctx context.Context) ([]engine.FurnaceSpec, error)
	UpsertFurnaces(ctx context.Context, furnaces []engine.FurnaceSpec) error

	// BookingsForFurnace returns the furnace's bookings in insertion order.
	BookingsForFurnace(ctx context.Context, furnaceID string) ([]engine.Booking, error)
	// GetBooking, UpdateBooking and DeleteBooking return nil, nil when the booking does not exist.
	GetBooking(ctx context.Context, furnaceID, bookingID string) (*engine.Booking, error)
	CreateBooking(ctx context.Context, b *engine.Booking) error
	UpdateBooking(ctx context.Context, furnaceID string, b *engine.Booking) (*engine.Booking, error)
	DeleteBooking(ctx context.Context, furnaceID, bookingID string) (*engine.Booking, error)

	SaveSubscription(ctx context.Context, sub model.PushSubscription, furnaceIDs []string) error
	Subscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsForFurnace(ctx context.Context, furnaceID string) ([]model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Furnaces(ctx context.Context) ([]engine.FurnaceSpec, error) {
	var rows []model.Furnace
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list furnaces: %w", err)
	}
	out := make([]engine.FurnaceSpec, len(rows))
	for i, row := range rows {
		out[i] = fromFurnaceModel(row)
	}
	return out, nil
}

// UpsertFurnaces writes the configured furnaces, updating the ones that already exist.
func (s *gormStore) UpsertFurnaces(ctx context.Context, furnaces []engine.FurnaceSpec) error {
	if len(furnaces) == 0 {
		return nil
	}
	rows := make([]model.Furnace, len(furnaces))
	for i, f := range furnaces {
		rows[i] = toFurnaceModel(f)
	}

	log.Printf("Upserting %d furnaces...", len(rows))
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "lines", "min_gap_halves", "allow_sunday_second_half_start", "aliases", "updated_at"}),
	}).Create(&rows).Error
}

func (s *gormStore) BookingsForFurnace(ctx context.Context, furnaceID string) ([]engine.Booking, error) {
	var rows []model.Booking
	err := s.withLines(ctx).
		Where("furnace_id = ?", furnaceID).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load bookings for furnace %s: %w", furnaceID, err)
	}

	out := make([]engine.Booking, 0, len(rows))
	for _, row := range rows {
		b, err := fromModel(row)
		if err != nil {
			return nil, fmt.Errorf("failed to decode booking %s: %w", row.ID, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *gormStore) GetBooking(ctx context.Context, furnaceID, bookingID string) (*engine.Booking, error) {
	var row model.Booking
	err := s.withLines(ctx).
		Where("furnace_id = ? AND id = ?", furnaceID, bookingID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load booking %s: %w", bookingID, err)
	}
	b, err := fromModel(row)
	if err != nil {
		return nil, fmt.Errorf("failed to decode booking %s: %w", bookingID, err)
	}
	return &b, nil
}

func (s *gormStore) CreateBooking(ctx context.Context, b *engine.Booking) error {
	row := toModel(b)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create booking %s: %w", b.ID, err)
	}
	b.CreatedAt = row.CreatedAt
	return nil
}

// UpdateBooking replaces every mutable field of the booking, its lines included.
func (s *gormStore) UpdateBooking(ctx context.Context, furnaceID string, b *engine.Booking) (*engine.Booking, error) {
	var updated *engine.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Booking
		err := tx.Where("furnace_id = ? AND id = ?", furnaceID, b.ID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		row := toModel(b)
		row.FurnaceID = furnaceID
		row.CreatedAt = existing.CreatedAt
		if err := tx.Omit(clause.Associations).Save(&row).Error; err != nil {
			return err
		}
		if err := tx.Where("booking_id = ?", row.ID).Delete(&model.SerialLine{}).Error; err != nil {
			return err
		}
		if len(row.Lines) > 0 {
			if err := tx.Create(&row.Lines).Error; err != nil {
				return err
			}
		}

		out, err := fromModel(row)
		if err != nil {
			return err
		}
		updated = &out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update booking %s: %w", b.ID, err)
	}
	return updated, nil
}

func (s *gormStore) DeleteBooking(ctx context.Context, furnaceID, bookingID string) (*engine.Booking, error) {
	var removed *engine.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row model.Booking
		err := tx.Preload("Lines").Where("furnace_id = ? AND id = ?", furnaceID, bookingID).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Where("booking_id = ?", row.ID).Delete(&model.SerialLine{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.Booking{}, "id = ?", row.ID).Error; err != nil {
			return err
		}

		out, err := fromModel(row)
		if err != nil {
			return err
		}
		removed = &out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete booking %s: %w", bookingID, err)
	}
	return removed, nil
}

// SaveSubscription creates or replaces a subscription and the furnaces it follows.
func (s *gormStore) SaveSubscription(ctx context.Context, sub model.PushSubscription, furnaceIDs []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Omit(clause.Associations).Create(&sub).Error; err != nil {
			return err
		}

		var furnaces []model.Furnace
		if len(furnaceIDs) > 0 {
			if err := tx.Where("id IN ?", furnaceIDs).Find(&furnaces).Error; err != nil {
				return err
			}
		}

		return tx.Model(&sub).Association("Furnaces").Replace(&furnaces)
	})
}

func (s *gormStore) Subscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).Preload("Furnaces").First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).
		Select(clause.Associations).
		Delete(&model.PushSubscription{Endpoint: endpoint}).Error
}

func (s *gormStore) SubscriptionsForFurnace(ctx context.Context, furnaceID string) ([]model.PushSubscription, error) {
	var subscriptions []model.PushSubscription
	err := s.db.WithContext(ctx).
		Joins("JOIN subscription_furnace_mapping sfm ON sfm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("sfm.furnace_id = ?", furnaceID).
		Find(&subscriptions).Error
	if err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func (s *gormStore) withLines(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("line_index")
	})
}
