package models

import (
	"fmt"
	"time"
)

// Funding history change types.
const (
	FundingCreated = "created"
	FundingUpdated = "updated"
	FundingDeleted = "deleted"
)

// Funding is a funding requirement for a route in an academic year.
// Amount is stored in pence.
type Funding struct {
	ID          uint64 `gorm:"primaryKey"`
	Route       string `gorm:"size:100;not null;uniqueIndex:idx_funding_route_year"`
	Year        int    `gorm:"not null;uniqueIndex:idx_funding_route_year"`
	Amount      int64  `gorm:"not null"`
	Description string `gorm:"type:text"`
	CreatedByID *uint64
	UpdatedByID *uint64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AmountPounds formats Amount as pounds with two decimals.
func (f *Funding) AmountPounds() string {
	return FormatPence(f.Amount)
}

// FundingHistory records every change made to a funding requirement.
type FundingHistory struct {
	ID          uint64 `gorm:"primaryKey"`
	FundingID   uint64 `gorm:"not null;index"`
	Route       string `gorm:"size:100;not null;index"`
	Year        int    `gorm:"not null;index"`
	Amount      int64  `gorm:"not null"`
	ChangeType  string `gorm:"size:20;not null"`
	ChangedByID *uint64
	ChangedBy   *User `gorm:"foreignKey:ChangedByID;constraint:OnDelete:SET NULL"`
	ChangedAt   time.Time
}

// FormatPence renders an amount in pence as "1234.56".
func FormatPence(p int64) string {
	sign := ""
	if p < 0 {
		sign = "-"
		p = -p
	}

	return fmt.Sprintf("%s%d.%02d", sign, p/100, p%100)
}
