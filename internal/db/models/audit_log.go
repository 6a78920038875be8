package models

import "time"

// AuditLog records an action taken by a user or by the system.
type AuditLog struct {
	ID           uint64  `gorm:"primaryKey"`
	UserID       *uint64 `gorm:"index"`
	Username     string  `gorm:"size:100"`
	Action       string  `gorm:"size:100;not null;index"`
	ResourceType string  `gorm:"size:50;index"`
	ResourceID   string  `gorm:"size:100"`
	Details      []byte
	CreatedAt    time.Time `gorm:"index"`
}
