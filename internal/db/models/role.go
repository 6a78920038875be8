package models

import "time"

// WhereNameIs is the condition used to look up roles and permissions by name.
const WhereNameIs = "name = ?"

// Seeded role names.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// Role is a named set of permissions assigned to users.
type Role struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"unique;size:100;not null"`
	Description string `gorm:"size:255"`
	// IsSystem roles are seeded and cannot be deleted.
	IsSystem    bool         `gorm:"default:false"`
	Permissions []Permission `gorm:"many2many:role_permissions;joinForeignKey:RoleID;joinReferences:PermissionID"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName overrides the table name used by Role to `roles`.
func (Role) TableName() string {
	return "roles"
}
