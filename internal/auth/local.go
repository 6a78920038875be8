package auth

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/random"
)

const (
	whereID       = "id = ?"
	whereLocalID  = "id = ? AND auth_source = ?"
	whereLocalLog = "username = ? AND auth_source = ?"
)

// LocalProvider signs users in against password hashes stored in the users
// table and manages those accounts.
type LocalProvider struct {
	db  *gorm.DB
	now func() time.Time
}

// NewLocalProvider returns a provider backed by db.
func NewLocalProvider(db *gorm.DB) *LocalProvider {
	return &LocalProvider{db: db, now: time.Now}
}

// Authenticate checks username and password and stamps LastLoginAt.
// The returned user has its role loaded.
func (p *LocalProvider) Authenticate(username, password string) (*models.User, error) {
	var u models.User

	switch err := p.db.Preload("Role").Where(whereLocalLog, username, models.AuthSourceLocal).Take(&u).Error; {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrUserNotFound
	case err != nil:
		return nil, fmt.Errorf("load user %q: %w", username, err)
	}

	if !u.Active {
		return nil, ErrUserAccountDisabled
	}

	if !u.VerifyPassword(password) {
		return nil, ErrInvalidPassword
	}

	at := p.now()
	if err := p.update(u.ID, "", map[string]any{"last_login_at": at}); err != nil {
		return nil, fmt.Errorf("record sign in of %q: %w", username, err)
	}

	u.LastLoginAt = &at

	return &u, nil
}

// CreateUser adds an active local account. Username and email must both be unused.
func (p *LocalProvider) CreateUser(
	username, email, password, firstName, lastName string,
	roleID uint,
) (*models.User, error) {
	var taken int64
	if err := p.db.Model(&models.User{}).
		Where("username = ? OR email = ?", username, email).Count(&taken).Error; err != nil {
		return nil, fmt.Errorf("check username %q: %w", username, err)
	}

	if taken > 0 {
		return nil, ErrUserNameOrEmailExists
	}

	now := p.now()
	u := &models.User{
		Active:     true,
		Username:   username,
		Email:      email,
		Password:   models.HashPassword(password),
		FirstName:  firstName,
		LastName:   lastName,
		RoleID:     roleID,
		AuthSource: models.AuthSourceLocal,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := p.db.Create(u).Error; err != nil {
		return nil, fmt.Errorf("create user %q: %w", username, err)
	}

	return u, nil
}

// UpdateUser changes the profile and role of a user of any auth source.
func (p *LocalProvider) UpdateUser(userID uint64, email, firstName, lastName string, roleID uint) error {
	return p.update(userID, "", map[string]any{
		"email":      email,
		"first_name": firstName,
		"last_name":  lastName,
		"role_id":    roleID,
	})
}

// ChangePassword sets a new password after checking the current one.
func (p *LocalProvider) ChangePassword(userID uint64, oldPassword, newPassword string) error {
	var u models.User

	switch err := p.db.Where(whereLocalID, userID, models.AuthSourceLocal).Take(&u).Error; {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrUserNotFound
	case err != nil:
		return err
	}

	if !u.VerifyPassword(oldPassword) {
		return ErrInvalidOldPassword
	}

	return p.update(userID, models.AuthSourceLocal, map[string]any{"password": models.HashPassword(newPassword)})
}

// ResetPassword gives a local user a generated password and returns it.
func (p *LocalProvider) ResetPassword(userID uint64) (string, error) {
	password, err := random.TempPassword()
	if err != nil {
		return "", err
	}

	if err := p.update(userID, models.AuthSourceLocal, map[string]any{"password": models.HashPassword(password)}); err != nil {
		return "", err
	}

	return password, nil
}

// SetActive revokes or restores access. Inactive users cannot sign in and
// their sessions stop resolving.
func (p *LocalProvider) SetActive(userID uint64, active bool) error {
	return p.update(userID, "", map[string]any{"active": active})
}

// DeleteUser removes a user.
func (p *LocalProvider) DeleteUser(userID uint64) error {
	return p.db.Delete(&models.User{}, userID).Error
}

// GetUserByID returns a user with its role.
func (p *LocalProvider) GetUserByID(userID uint64) (*models.User, error) {
	var u models.User

	err := p.db.Preload("Role").Take(&u, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}

	if err != nil {
		return nil, err
	}

	return &u, nil
}

// update writes fields of one user, limited to source when set, and
// reports ErrUserNotFound when no row matched.
func (p *LocalProvider) update(userID uint64, source models.AuthSource, fields map[string]any) error {
	fields["updated_at"] = p.now()

	q := p.db.Model(&models.User{}).Where(whereID, userID)
	if source != "" {
		q = q.Where("auth_source = ?", source)
	}

	res := q.Updates(fields)
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}
