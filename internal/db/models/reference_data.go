package models

import (
	"time"

	"gorm.io/gorm"
)

// Reference data item statuses.
const (
	ItemActive     = "Active"
	ItemInactive   = "Inactive"
	ItemDeprecated = "Deprecated"
)

// Change types recorded against an item for the academic year it belongs to.
const (
	ChangeNew       = "new"
	ChangeUpdated   = "updated"
	ChangeRemoved   = "removed"
	ChangeUnchanged = "unchanged"
)

// ReferenceData is a reference data item (a code list) valid for an academic year.
type ReferenceData struct {
	ID             uint64 `gorm:"primaryKey"`
	Code           string `gorm:"size:100;not null;index"`
	Name           string `gorm:"size:255;not null"`
	Description    string `gorm:"type:text"`
	Category       string `gorm:"size:100;index"`
	Status         string `gorm:"size:20;not null;default:'Active'"`
	AcademicYearID *uint
	AcademicYear   *AcademicYear    `gorm:"foreignKey:AcademicYearID;constraint:OnDelete:SET NULL"`
	ChangeType     string           `gorm:"size:20;not null;default:'unchanged'"`
	Values         []ReferenceValue `gorm:"foreignKey:ItemID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

// TableName overrides the table name used by ReferenceData to `reference_data`.
func (ReferenceData) TableName() string {
	return "reference_data"
}

// ReferenceValue is one allowed value of a reference data item.
type ReferenceValue struct {
	ID           uint64 `gorm:"primaryKey"`
	ItemID       uint64 `gorm:"not null;index"`
	Value        string `gorm:"size:255;not null"`
	DisplayName  string `gorm:"size:255;not null"`
	Description  string `gorm:"type:text"`
	DisplayOrder int    `gorm:"not null;default:0"`
	IsDefault    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

// RestorePoint is a JSON snapshot of all reference data items and values.
type RestorePoint struct {
	ID          uint64 `gorm:"primaryKey"`
	Name        string `gorm:"size:255;not null"`
	Description string `gorm:"type:text"`
	Snapshot    []byte `json:"-"`
	ItemCount   int
	CreatedByID *uint64
	CreatedBy   *User `gorm:"foreignKey:CreatedByID;constraint:OnDelete:SET NULL"`
	CreatedAt   time.Time
}
