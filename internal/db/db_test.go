package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfe-rrdm/rrdm/internal/config"
	"github.com/dfe-rrdm/rrdm/internal/db/models"
)

func TestOpenAndMigrateSQLite(t *testing.T) {
	conn, err := Open(&config.DB{GormEngine: config.EngineSQLite, Path: ":memory:"}, false)
	require.NoError(t, err)

	require.NoError(t, Migrate(conn))

	for _, m := range AllModels() {
		assert.True(t, conn.Migrator().HasTable(m), "table for %T", m)
	}

	assert.True(t, conn.Migrator().HasTable("bcr_impacted_areas"))
	assert.True(t, conn.Migrator().HasTable(&models.WorkflowActivity{}))
}

func TestOpenNilConfig(t *testing.T) {
	_, err := Open(nil, false)
	assert.ErrorIs(t, err, ErrNilConfig)
}
