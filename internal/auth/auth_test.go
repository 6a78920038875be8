package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/memory/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/web/session"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Permission{}, &models.Role{}, &models.RolePermission{}, &models.User{},
	))

	return db
}

// seedRole creates a role holding the given permissions.
func seedRole(t *testing.T, db *gorm.DB, name string, perms ...string) models.Role {
	t.Helper()

	role := models.Role{Name: name}

	for _, p := range perms {
		perm := models.Permission{Name: p, Resource: "r", Action: "a"}
		require.NoError(t, db.Where(models.WhereNameIs, p).FirstOrCreate(&perm).Error)
		role.Permissions = append(role.Permissions, perm)
	}

	require.NoError(t, db.Create(&role).Error)

	return role
}

func TestHasPermission(t *testing.T) {
	db := setupTestDB(t)
	editor := seedRole(t, db, models.RoleEditor, PermBcrRead, PermBcrWrite)
	seedRole(t, db, models.RoleViewer, PermBcrRead)

	lp := NewLocalProvider(db)
	user, err := lp.CreateUser("ed", "ed@example.com", "pw", "Ed", "Itor", editor.ID)
	require.NoError(t, err)

	svc := NewService(db)

	tests := []struct {
		perm string
		want bool
	}{
		{PermBcrRead, true},
		{PermBcrWrite, true},
		{PermAdminUsers, false},
	}

	for _, tt := range tests {
		got, err := svc.HasPermission(user.ID, tt.perm)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.perm)
	}

	hasAny, err := svc.HasAnyPermission(user.ID, []string{PermAdminUsers, PermBcrWrite})
	require.NoError(t, err)
	assert.True(t, hasAny)

	perms, err := svc.GetUserPermissions(user.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{PermBcrRead, PermBcrWrite}, perms)

	require.NoError(t, lp.SetActive(user.ID, false))

	got, err := svc.HasPermission(user.ID, PermBcrRead)
	require.NoError(t, err)
	assert.False(t, got, "inactive users have no permissions")
}

func TestSetRolePermissions(t *testing.T) {
	db := setupTestDB(t)
	role := seedRole(t, db, "custom", PermBcrRead, PermFundingRead)
	svc := NewService(db)

	var funding models.Permission
	require.NoError(t, db.Where(models.WhereNameIs, PermFundingRead).First(&funding).Error)

	require.NoError(t, svc.SetRolePermissions(role.ID, []uint{funding.ID}))

	roles, err := svc.ListRoles()
	require.NoError(t, err)
	require.Len(t, roles, 1)
	require.Len(t, roles[0].Permissions, 1)
	assert.Equal(t, PermFundingRead, roles[0].Permissions[0].Name)

	require.ErrorIs(t, svc.SetRolePermissions(999, nil), ErrRoleNotFound)
}

func TestLocalProvider(t *testing.T) {
	db := setupTestDB(t)
	role := seedRole(t, db, models.RoleViewer)
	lp := NewLocalProvider(db)
	now := time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)
	lp.now = func() time.Time { return now }

	user, err := lp.CreateUser("alice", "alice@example.com", "secret", "Alice", "Doe", role.ID)
	require.NoError(t, err)
	assert.True(t, user.Active)

	_, err = lp.CreateUser("alice", "other@example.com", "x", "", "", role.ID)
	require.ErrorIs(t, err, ErrUserNameOrEmailExists)

	got, err := lp.Authenticate("alice", "secret")
	require.NoError(t, err)
	require.NotNil(t, got.LastLoginAt)
	assert.True(t, got.LastLoginAt.Equal(now))
	assert.Equal(t, models.RoleViewer, got.Role.Name)

	_, err = lp.Authenticate("alice", "wrong")
	require.ErrorIs(t, err, ErrInvalidPassword)

	_, err = lp.Authenticate("nobody", "secret")
	require.ErrorIs(t, err, ErrUserNotFound)

	require.ErrorIs(t, lp.ChangePassword(user.ID, "wrong", "new"), ErrInvalidOldPassword)
	require.NoError(t, lp.ChangePassword(user.ID, "secret", "new"))

	_, err = lp.Authenticate("alice", "new")
	require.NoError(t, err)

	temp, err := lp.ResetPassword(user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, temp)

	_, err = lp.Authenticate("alice", temp)
	require.NoError(t, err)

	_, err = lp.ResetPassword(999)
	require.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, lp.SetActive(user.ID, false))

	_, err = lp.Authenticate("alice", temp)
	require.ErrorIs(t, err, ErrUserAccountDisabled)

	require.ErrorIs(t, lp.SetActive(999, true), ErrUserNotFound)

	got, err = lp.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, role.Name, got.Role.Name)
}

func TestUpsertExternalUser(t *testing.T) {
	db := setupTestDB(t)
	viewer := seedRole(t, db, models.RoleViewer)

	id := externalIdentity{ExternalID: "sub-1", Username: "bo@example.com", Email: "bo@example.com", FirstName: "Bo"}

	u, err := upsertExternalUser(db, models.AuthSourceOIDC, models.RoleViewer, id)
	require.NoError(t, err)
	assert.Equal(t, viewer.ID, u.RoleID)
	assert.Equal(t, models.RoleViewer, u.Role.Name)

	id.FirstName = "Bob"

	u2, err := upsertExternalUser(db, models.AuthSourceOIDC, models.RoleViewer, id)
	require.NoError(t, err)
	assert.Equal(t, u.ID, u2.ID)
	assert.Equal(t, "Bob", u2.FirstName)

	_, err = upsertExternalUser(db, models.AuthSourceLDAP, "missing", externalIdentity{ExternalID: "cn=x"})
	require.ErrorIs(t, err, ErrRoleNotFound)

	require.NoError(t, NewLocalProvider(db).SetActive(u.ID, false))

	_, err = upsertExternalUser(db, models.AuthSourceOIDC, models.RoleViewer, id)
	require.ErrorIs(t, err, ErrUserAccountDisabled)
}

func TestRequirePermission(t *testing.T) {
	db := setupTestDB(t)
	role := seedRole(t, db, models.RoleViewer, PermBcrRead)

	user, err := NewLocalProvider(db).CreateUser("vi", "vi@example.com", "pw", "", "", role.ID)
	require.NoError(t, err)

	session.Init(memory.New())
	require.NoError(t, (&session.Data{User: *user}).Write("sid", time.Minute))

	svc := NewService(db)
	app := fiber.New()
	app.Use(AddPermissionsToLocals(svc))
	app.Get("/read", RequirePermission(svc, PermBcrRead), func(c *fiber.Ctx) error {
		if !Can(c, PermBcrRead) {
			return fiber.ErrTeapot
		}

		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/write", RequireAnyPermission(svc, PermBcrWrite, PermAdminUsers), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	tests := []struct {
		name   string
		path   string
		cookie string
		want   int
	}{
		{"granted", "/read", "sid", fiber.StatusNoContent},
		{"denied", "/write", "sid", fiber.StatusForbidden},
		{"no session", "/read", "", fiber.StatusUnauthorized},
		{"unknown session", "/read", "nope", fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: session.CookieName, Value: tt.cookie})
			}

			resp, err := app.Test(req, -1)
			require.NoError(t, err)

			defer resp.Body.Close()

			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
