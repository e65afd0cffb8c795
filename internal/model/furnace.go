package model

import "time"

// Furnace is a schedulable furnace, seeded from configuration at boot.
type Furnace struct {
	ID                         string   `gorm:"primaryKey;size:32"`
	Name                       string   `gorm:"size:128;not null"`
	Lines                      int      `gorm:"not null"`
	MinGapHalves               int      `gorm:"not null"`
	AllowSundaySecondHalfStart bool     `gorm:"not null"`
	Aliases                    []string `gorm:"serializer:json"`
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}
