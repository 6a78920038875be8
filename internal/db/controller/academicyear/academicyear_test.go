package academicyear

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Permission{}, &models.Role{}, &models.User{}, &models.BcrConfig{},
		&models.AcademicYear{}, &models.AcademicBreak{}, &models.Release{}, &models.Bcr{},
	))

	return db
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseStart(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "2025", want: day(2025, time.September, 1)},
		{in: "2025-09-01", want: day(2025, time.September, 1)},
		{in: "2025-09-02", wantErr: true},
		{in: "2025-08-01", wantErr: true},
		{in: "25", wantErr: true},
		{in: "soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStart(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidStart)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewDerivesFields(t *testing.T) {
	ay := New(day(2025, time.September, 1), day(2025, time.October, 15))

	assert.Equal(t, day(2026, time.August, 31), ay.EndDate)
	assert.Equal(t, "25/26", ay.Name)
	assert.Equal(t, "AY25/26", ay.Code)
	assert.Equal(t, "2025/2026", ay.FullName)
	assert.Equal(t, models.YearCurrent, ay.Status)
}

func TestStatusAt(t *testing.T) {
	ay := New(day(2025, time.September, 1), time.Now())

	assert.Equal(t, models.YearFuture, StatusAt(&ay, day(2025, time.August, 31)))
	assert.Equal(t, models.YearCurrent, StatusAt(&ay, day(2025, time.September, 1)))
	assert.Equal(t, models.YearCurrent, StatusAt(&ay, time.Date(2026, time.August, 31, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, models.YearPast, StatusAt(&ay, day(2026, time.September, 1)))
}

func TestCreateRejectsDuplicates(t *testing.T) {
	db := setupTestDB(t)
	today := day(2025, time.October, 1)

	_, err := Create(db, day(2025, time.September, 1), today)
	require.NoError(t, err)

	_, err = Create(db, day(2025, time.September, 1), today)
	require.ErrorIs(t, err, ErrExists)

	_, err = Create(db, day(2025, time.October, 1), today)
	require.ErrorIs(t, err, ErrInvalidStart)
}

func TestUpdateStatuses(t *testing.T) {
	db := setupTestDB(t)
	created := day(2023, time.January, 1)

	for _, y := range []int{2024, 2025, 2026, 2027} {
		_, err := Create(db, day(y, time.September, 1), created)
		require.NoError(t, err)
	}

	changes, err := UpdateStatuses(db, day(2025, time.October, 15))
	require.NoError(t, err)

	got := map[string]string{}
	triggers := 0
	for _, c := range changes {
		got[c.Year.Name] = c.OldStatus + "->" + c.NewStatus
		if c.TriggersReleases() {
			triggers++
		}
	}

	assert.Equal(t, map[string]string{
		"24/25": "Future->Past",
		"25/26": "Future->Current",
		"26/27": "Future->Next",
	}, got)
	assert.Equal(t, 2, triggers)

	again, err := UpdateStatuses(db, day(2025, time.October, 16))
	require.NoError(t, err)
	assert.Empty(t, again)

	years, err := List(db, models.YearFuture)
	require.NoError(t, err)
	require.Len(t, years, 1)
	assert.Equal(t, "27/28", years[0].Name)
}

func TestBreaks(t *testing.T) {
	db := setupTestDB(t)

	ay, err := Create(db, day(2025, time.September, 1), day(2025, time.October, 1))
	require.NoError(t, err)

	b, err := AddBreak(db, ay.ID, "Christmas", day(2025, time.December, 20), day(2026, time.January, 4))
	require.NoError(t, err)

	_, err = AddBreak(db, ay.ID, "Backwards", day(2026, time.April, 10), day(2026, time.April, 1))
	require.ErrorIs(t, err, ErrInvalidBreak)
	_, err = AddBreak(db, ay.ID, "Outside", day(2026, time.September, 10), day(2026, time.September, 12))
	require.ErrorIs(t, err, ErrInvalidBreak)

	got, err := Get(db, ay.ID)
	require.NoError(t, err)
	require.Len(t, got.Breaks, 1)

	require.NoError(t, DeleteBreak(db, ay.ID, b.ID))
	require.ErrorIs(t, DeleteBreak(db, ay.ID, b.ID), ErrNotFound)

	change, err := SetStatus(db, ay.ID, models.YearArchived)
	require.NoError(t, err)
	assert.Equal(t, models.YearArchived, change.NewStatus)
	assert.Equal(t, models.YearArchived, change.Year.Status)
	assert.False(t, change.TriggersReleases())
	_, err = SetStatus(db, ay.ID, "Someday")
	require.ErrorIs(t, err, ErrInvalidStatus)

	require.NoError(t, Delete(db, ay.ID))
	_, err = Get(db, ay.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSetStatusOverride(t *testing.T) {
	db := setupTestDB(t)
	today := day(2025, time.October, 1)

	ay, err := Create(db, day(2027, time.September, 1), today)
	require.NoError(t, err)
	require.Equal(t, models.YearFuture, ay.Status)

	change, err := SetStatus(db, ay.ID, models.YearNext)
	require.NoError(t, err)
	assert.Equal(t, models.YearFuture, change.OldStatus)
	assert.True(t, change.TriggersReleases())

	// the computed status wins on the next run
	changes, err := UpdateStatuses(db, today)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, models.YearFuture, changes[0].NewStatus)

	_, err = SetStatus(db, ay.ID, models.YearArchived)
	require.NoError(t, err)

	changes, err = UpdateStatuses(db, today)
	require.NoError(t, err)
	assert.Empty(t, changes)

	got, err := Get(db, ay.ID)
	require.NoError(t, err)
	assert.Equal(t, models.YearArchived, got.Status)

	_, err = SetStatus(db, 999, models.YearNext)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteUnschedulesBcrs(t *testing.T) {
	db := setupTestDB(t)

	ay, err := Create(db, day(2025, time.September, 1), day(2025, time.October, 1))
	require.NoError(t, err)

	r := models.Release{AcademicYearID: ay.ID, ReleaseCode: "25/26-AH-01", ReleaseType: models.ReleaseAdhoc,
		Name: "Hotfix", Status: models.ReleasePlanned, GoLiveDate: day(2025, time.September, 22)}
	require.NoError(t, db.Create(&r).Error)

	b := models.Bcr{BcrNumber: "BCR-25/26-001", RecordNumber: 1, Title: "Change", Status: "phase_1_in_progress", ReleaseID: &r.ID}
	require.NoError(t, db.Create(&b).Error)

	require.NoError(t, Delete(db, ay.ID))

	var got models.Bcr
	require.NoError(t, db.First(&got, "id = ?", b.ID).Error)
	assert.Nil(t, got.ReleaseID)
}
