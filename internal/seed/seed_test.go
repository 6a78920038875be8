package seed

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/auth"
	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/workflow"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Permission{}, &models.Role{}, &models.RolePermission{},
		&models.User{}, &models.BcrConfig{},
	))

	return db
}

func TestSeedFileMatchesPermissionConstants(t *testing.T) {
	data, err := Load()
	require.NoError(t, err)

	names := make([]string, 0, len(data.Permissions))
	for _, p := range data.Permissions {
		names = append(names, p.Name)
	}

	assert.ElementsMatch(t, auth.AllPermissions(), names)
}

func TestRunIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, Run(ctx, db, Options{DefaultAdmin: true}))
	require.NoError(t, Run(ctx, db, Options{DefaultAdmin: true}))

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Equal(t, int64(1), users)

	var phases, statuses, areas int64
	db.Model(&models.BcrConfig{}).Where("type = ?", models.ConfigTypePhase).Count(&phases)
	db.Model(&models.BcrConfig{}).Where("type = ?", models.ConfigTypeStatus).Count(&statuses)
	db.Model(&models.BcrConfig{}).Where("type = ?", models.ConfigTypeImpactArea).Count(&areas)
	assert.Equal(t, int64(len(workflow.Phases)), phases)
	assert.Equal(t, int64(2*len(workflow.Phases)), statuses)
	assert.Equal(t, int64(8), areas)
}

func TestRunGrantsRolePermissions(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, Run(context.Background(), db, Options{DefaultAdmin: true}))

	var admin models.User
	require.NoError(t, db.Where("username = ?", DefaultAdminUser).First(&admin).Error)
	assert.True(t, admin.VerifyPassword(DefaultAdminPassword))

	svc := auth.NewService(db)

	perms, err := svc.GetUserPermissions(admin.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, auth.AllPermissions(), perms)

	var viewer models.Role
	require.NoError(t, db.Preload("Permissions").Where(models.WhereNameIs, models.RoleViewer).First(&viewer).Error)

	for _, p := range viewer.Permissions {
		assert.NotContains(t, []string{"write", "review"}, p.Action, p.Name)
	}
}

func TestRunWithoutAdmin(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, Run(context.Background(), db, Options{}))

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Zero(t, users)
}
