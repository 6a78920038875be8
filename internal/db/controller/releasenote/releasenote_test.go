package releasenote

import (
	"testing"
	"time"

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
	require.NoError(t, db.AutoMigrate(&models.ReleaseNote{}))

	return db
}

func TestReleaseNoteLifecycle(t *testing.T) {
	db := setupTestDB(t)

	older := &models.ReleaseNote{Version: "1.0.0", Title: "First", ReleaseDate: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)}
	newer := &models.ReleaseNote{Version: "1.1.0", Title: "Second", ReleaseDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Features: "Search\n\n  Filters  "}
	require.NoError(t, Create(db, older))
	require.NoError(t, Create(db, newer))

	err := Create(db, &models.ReleaseNote{Version: "1.0.0", Title: "Dup", ReleaseDate: time.Now()})
	require.Error(t, err)
	assert.True(t, dberr.IsDuplicate(err))

	list, err := List(db)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "1.1.0", list[0].Version)
	assert.Equal(t, []string{"Search", "Filters"}, list[0].FeatureList())

	updated, err := Update(db, older.ID, models.ReleaseNote{Version: "1.0.1", Title: "First fixed", ReleaseDate: older.ReleaseDate})
	require.NoError(t, err)
	assert.Equal(t, "1.0.1", updated.Version)

	_, err = Update(db, 999, models.ReleaseNote{})
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, Delete(db, older.ID))
	require.ErrorIs(t, Delete(db, older.ID), ErrNotFound)

	n, err := Count(db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
