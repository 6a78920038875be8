package bcrconfig

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/db/dberr"
	"github.com/dfe-rrdm/rrdm/internal/db/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.BcrConfig{}, &models.Bcr{}))

	return db
}

func TestImpactAreaValue(t *testing.T) {
	assert.Equal(t, "reference_data", ImpactAreaValue("Reference Data"))
	assert.Equal(t, "documentation_&_guidance", ImpactAreaValue(" Documentation & Guidance "))
	assert.Equal(t, "api", ImpactAreaValue("API"))
}

func TestImpactAreaLifecycle(t *testing.T) {
	db := setupTestDB(t)

	area, err := CreateImpactArea(db, ImpactArea{Name: "Funding", Order: 8})
	require.NoError(t, err)
	assert.Equal(t, "funding", area.Value)

	_, err = CreateImpactArea(db, ImpactArea{Name: "Funding", Order: 9})
	assert.True(t, dberr.IsDuplicate(err), "got %v", err)

	_, err = CreateImpactArea(db, ImpactArea{Name: " "})
	require.ErrorIs(t, err, ErrNameEmpty)

	updated, err := UpdateImpactArea(db, area.ID, ImpactArea{Name: "Funding Policy", Order: 1})
	require.NoError(t, err)
	assert.Equal(t, "funding_policy", updated.Value)

	list, err := ListByType(db, models.ConfigTypeImpactArea)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, DeleteImpactArea(db, area.ID))
	require.ErrorIs(t, DeleteImpactArea(db, area.ID), ErrNotFound)
}

func TestDeleteImpactAreaInUse(t *testing.T) {
	db := setupTestDB(t)

	area, err := CreateImpactArea(db, ImpactArea{Name: "Backend", Order: 1})
	require.NoError(t, err)

	bcr := models.Bcr{BcrNumber: "BCR-25/26-001", RecordNumber: 1, Title: "t", Status: "phase_2_in_progress",
		ImpactedAreas: []models.BcrConfig{*area}}
	require.NoError(t, db.Create(&bcr).Error)

	require.ErrorIs(t, DeleteImpactArea(db, area.ID), ErrInUse)
}
