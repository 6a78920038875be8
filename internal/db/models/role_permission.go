package models

// RolePermission is the join table between roles and permissions.
type RolePermission struct {
	RoleID       uint       `gorm:"primaryKey;column:role_id"`
	PermissionID uint       `gorm:"primaryKey;column:permission_id"`
	Role         Role       `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE"`
	Permission   Permission `gorm:"foreignKey:PermissionID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the table name used by RolePermission to `role_permissions`.
func (RolePermission) TableName() string {
	return "role_permissions"
}
