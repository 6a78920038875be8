package auth

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
)

// externalIdentity is what LDAP and OIDC report about a user.
type externalIdentity struct {
	ExternalID string
	Username   string
	Email      string
	FirstName  string
	LastName   string
}

// upsertExternalUser finds the user by (source, external id) or creates it
// with the named default role. Profile fields are refreshed on every login.
func upsertExternalUser(
	db *gorm.DB,
	source models.AuthSource,
	defaultRole string,
	id externalIdentity,
) (*models.User, error) {
	var user models.User

	now := time.Now()

	err := db.Where("external_id = ? AND auth_source = ?", id.ExternalID, source).First(&user).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		roleID, errRole := roleIDByName(db, defaultRole)
		if errRole != nil {
			return nil, errRole
		}

		user = models.User{
			Active:      true,
			Username:    id.Username,
			Email:       id.Email,
			FirstName:   id.FirstName,
			LastName:    id.LastName,
			AuthSource:  source,
			ExternalID:  id.ExternalID,
			RoleID:      roleID,
			LastLoginAt: &now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err = db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to query user: %w", err)
	default:
		if !user.Active {
			return nil, ErrUserAccountDisabled
		}

		user.Email = id.Email
		user.FirstName = id.FirstName
		user.LastName = id.LastName
		user.LastLoginAt = &now
		user.UpdatedAt = now

		if err = db.Omit("Role").Save(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
	}

	if err = db.Preload("Role").First(&user, user.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload user: %w", err)
	}

	return &user, nil
}
