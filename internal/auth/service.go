package auth

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
)

// Service provides authorization checks backed by roles and permissions.
type Service struct {
	db *gorm.DB
}

// NewService creates a new auth service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// HasPermission checks if the user's role carries the named permission.
// Inactive users have no permissions.
func (s *Service) HasPermission(userID uint64, permission string) (bool, error) {
	var count int64

	err := s.db.Table("permissions").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN users ON users.role_id = role_permissions.role_id").
		Where("users.id = ? AND users.active = ? AND permissions.name = ?", userID, true, permission).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check role permission: %w", err)
	}

	return count > 0, nil
}

// HasAnyPermission checks if a user has at least one of the given permissions.
func (s *Service) HasAnyPermission(userID uint64, permissions []string) (bool, error) {
	if len(permissions) == 0 {
		return false, nil
	}

	for _, perm := range permissions {
		has, err := s.HasPermission(userID, perm)
		if err != nil {
			return false, err
		}

		if has {
			return true, nil
		}
	}

	return false, nil
}

// GetUserPermissions retrieves all permission names granted by the user's role.
func (s *Service) GetUserPermissions(userID uint64) ([]string, error) {
	var permissions []string

	err := s.db.Table("permissions").
		Select("DISTINCT permissions.name").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN users ON users.role_id = role_permissions.role_id").
		Where("users.id = ? AND users.active = ?", userID, true).
		Pluck("permissions.name", &permissions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get user permissions: %w", err)
	}

	return permissions, nil
}

// AssignRoleToUser assigns a role to a user.
func (s *Service) AssignRoleToUser(userID uint64, roleID uint) error {
	return s.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("role_id", roleID).Error
}

// RoleIDByName resolves a role name, as used by the default role of
// externally provisioned users.
func (s *Service) RoleIDByName(name string) (uint, error) {
	return roleIDByName(s.db, name)
}

func roleIDByName(db *gorm.DB, name string) (uint, error) {
	var role models.Role

	err := db.Where(models.WhereNameIs, name).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrRoleNotFound
	}

	if err != nil {
		return 0, fmt.Errorf("failed to load role %q: %w", name, err)
	}

	return role.ID, nil
}

// ListRoles returns all roles with their permissions.
func (s *Service) ListRoles() ([]models.Role, error) {
	var roles []models.Role

	err := s.db.Preload("Permissions").Order("id").Find(&roles).Error

	return roles, err
}

// ListPermissionRows returns every permission row ordered by resource.
func (s *Service) ListPermissionRows() ([]models.Permission, error) {
	var perms []models.Permission

	err := s.db.Order("resource, action").Find(&perms).Error

	return perms, err
}

// SetRolePermissions replaces the permissions attached to a role.
func (s *Service) SetRolePermissions(roleID uint, permissionIDs []uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if err := tx.First(&role, roleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoleNotFound
			}

			return err
		}

		var perms []models.Permission
		if len(permissionIDs) > 0 {
			if err := tx.Where("id IN ?", permissionIDs).Find(&perms).Error; err != nil {
				return err
			}
		}

		return tx.Model(&role).Association("Permissions").Replace(perms)
	})
}
