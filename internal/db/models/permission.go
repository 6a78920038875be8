package models

import "time"

// Permission is a single grant in resource.action form, e.g. "bcr.update".
type Permission struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"unique;size:100;not null"`
	Resource    string `gorm:"size:100;not null"`
	Action      string `gorm:"size:50;not null"`
	Description string `gorm:"size:255"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName overrides the table name used by Permission to `permissions`.
func (Permission) TableName() string {
	return "permissions"
}
