package bcr

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/workflow"
)

func setupTestDB(t *testing.T) (*gorm.DB, *workflow.Service) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.BcrConfig{}, &models.Bcr{}, &models.WorkflowActivity{}))

	rows := workflow.ConfigRows()
	require.NoError(t, db.Create(&rows).Error)

	return db, workflow.NewService(db, nil)
}

func seed(t *testing.T, wf *workflow.Service, title, urgency string) *models.Bcr {
	t.Helper()

	b, err := wf.Create(context.Background(), workflow.NewBcr{Title: title, UrgencyLevel: urgency})
	require.NoError(t, err)

	return b
}

func TestList(t *testing.T) {
	db, wf := setupTestDB(t)
	ctx := context.Background()

	seed(t, wf, "Add funding route", "High")
	second := seed(t, wf, "Retire legacy code list", "Low")
	seed(t, wf, "Rename provider type", "Low")

	_, err := wf.UpdatePhase(ctx, workflow.UpdateRequest{BcrID: second.ID, Phase: 2, Completed: true})
	require.NoError(t, err)

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int64
		wantPage  int
	}{
		{name: "all", filter: Filter{}, wantTotal: 3, wantPage: 3},
		{name: "search title", filter: Filter{Search: "LEGACY"}, wantTotal: 1, wantPage: 1},
		{name: "search number", filter: Filter{Search: "-003"}, wantTotal: 1, wantPage: 1},
		{name: "phase", filter: Filter{Phase: 3}, wantTotal: 1, wantPage: 1},
		{name: "status", filter: Filter{Status: "phase_2_in_progress"}, wantTotal: 2, wantPage: 2},
		{name: "urgency", filter: Filter{Urgency: "low"}, wantTotal: 2, wantPage: 2},
		{name: "second page", filter: Filter{Page: 2, PageSize: 2}, wantTotal: 3, wantPage: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := List(db, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)
			assert.Len(t, got, tt.wantPage)
		})
	}
}

func TestGetAndCounts(t *testing.T) {
	db, wf := setupTestDB(t)

	b := seed(t, wf, "Add funding route", "High")

	got, err := Get(db, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.BcrNumber, got.BcrNumber)

	_, err = Get(db, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	byPhase, err := CountByPhase(db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), byPhase[2])

	recent, err := Recent(db, 5)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}
