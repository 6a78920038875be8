package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dfe-rrdm/rrdm/internal/db"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/academicyear"
	"github.com/dfe-rrdm/rrdm/internal/db/models"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Migrate(conn))

	return conn
}

func closeDB(t *testing.T, conn *gorm.DB) {
	t.Helper()

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

func createYear(t *testing.T, conn *gorm.DB, year int) {
	t.Helper()

	start := time.Date(year, time.September, 1, 0, 0, 0, 0, time.UTC)
	_, err := academicyear.Create(conn, start, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
}

func TestStatusUpdaterUpdate(t *testing.T) {
	conn := openDB(t)
	defer closeDB(t, conn)

	createYear(t, conn, 2025)
	createYear(t, conn, 2026)

	u := NewStatusUpdater(conn, 0)
	assert.Equal(t, DefaultStatusUpdateInterval, u.interval)

	u.now = func() time.Time { return time.Date(2025, time.October, 1, 9, 0, 0, 0, time.UTC) }

	changes, err := u.Update()
	require.NoError(t, err)
	require.Len(t, changes, 2)

	got := map[string]string{}
	for _, c := range changes {
		got[c.Year.FullName] = c.NewStatus
		assert.True(t, c.TriggersReleases())
	}

	assert.Equal(t, map[string]string{"2025/2026": models.YearCurrent, "2026/2027": models.YearNext}, got)

	var releases int64
	require.NoError(t, conn.Model(&models.Release{}).Count(&releases).Error)
	assert.Positive(t, releases)

	var generated int64
	require.NoError(t, conn.Model(&models.AuditLog{}).Where("action = ?", "generate_releases").Count(&generated).Error)
	assert.Equal(t, int64(2), generated)

	// a second run at the same time changes nothing
	changes, err = u.Update()
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestStatusUpdaterRunStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	conn := openDB(t)
	defer closeDB(t, conn)

	createYear(t, conn, 2025)

	u := NewStatusUpdater(conn, 10*time.Millisecond)
	u.now = func() time.Time { return time.Date(2025, time.October, 1, 9, 0, 0, 0, time.UTC) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- u.Run(ctx) }()

	require.Eventually(t, func() bool {
		var ay models.AcademicYear
		if err := conn.First(&ay).Error; err != nil {
			return false
		}

		return ay.Status == models.YearCurrent
	}, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("updater did not stop")
	}
}
