package models

import "time"

// BcrConfig types.
const (
	ConfigTypePhase        = "phase"
	ConfigTypeStatus       = "status"
	ConfigTypeImpactArea   = "impactArea"
	ConfigTypeUrgencyLevel = "urgencyLevel"
)

// BcrConfig is a configurable workflow value: a phase, a status, an impact area or an urgency level.
// Phases use their number as Value; statuses use `phase_{n}_in_progress` or `phase_{n}_completed`.
type BcrConfig struct {
	ID           uint   `gorm:"primaryKey"`
	Type         string `gorm:"size:50;not null;uniqueIndex:idx_bcr_config_type_value;index"`
	Name         string `gorm:"size:255;not null"`
	Value        string `gorm:"size:255;not null;uniqueIndex:idx_bcr_config_type_value"`
	DisplayOrder int    `gorm:"not null;default:0"`
	Color        string `gorm:"size:50"`
	// PhaseValue links a status row to its phase.
	PhaseValue *int
	// StatusType is "in_progress" or "completed" for status rows.
	StatusType  string `gorm:"size:20"`
	Description string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
