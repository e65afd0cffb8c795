package model

import (
	"time"

	"furnace-scheduler/internal/engine"
)

// Booking is one registration on a furnace. The timeline is stored as a JSON
// document and always replaced as a whole.
type Booking struct {
	ID         string               `gorm:"primaryKey;size:64"`
	FurnaceID  string               `gorm:"index;size:32;not null"`
	StartDate  string               `gorm:"size:10;not null"`
	Registrant string               `gorm:"size:128"`
	Status     string               `gorm:"size:16;not null"`
	Timeline   *engine.Timeline     `gorm:"serializer:json"`
	History    []engine.StatusEntry `gorm:"serializer:json"`
	CreatedAt  time.Time            `gorm:"not null"`
	UpdatedAt  time.Time

	// Associations
	Lines []SerialLine `gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE"`
}

// SerialLine is one transformer occupying a line of a booking.
type SerialLine struct {
	ID        int64                `gorm:"primaryKey"`
	BookingID string               `gorm:"index;size:64;not null"`
	LineIndex int                  `gorm:"not null"`
	Serial    string               `gorm:"size:64;not null"`
	Voltage   string               `gorm:"size:8;not null"`
	Status    string               `gorm:"size:16;not null"`
	History   []engine.StatusEntry `gorm:"serializer:json"`
}
