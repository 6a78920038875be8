package funding

import (
	"testing"

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
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Funding{}, &models.FundingHistory{}))

	return db
}

func TestFundingLifecycleWritesHistory(t *testing.T) {
	db := setupTestDB(t)

	a, err := Create(db, Input{Route: "Apprenticeships", Year: 2025, Amount: 150000}, nil)
	require.NoError(t, err)
	_, err = Create(db, Input{Route: "16-19", Year: 2025, Amount: 99}, nil)
	require.NoError(t, err)
	_, err = Create(db, Input{Route: "Apprenticeships", Year: 2026, Amount: 200000}, nil)
	require.NoError(t, err)

	list, err := List(db, Filter{Year: FilterAll, Route: FilterAll})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, 2026, list[0].Year)
	assert.Equal(t, "16-19", list[1].Route)

	filtered, err := List(db, Filter{Route: "Apprenticeships", Year: "2025"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)

	_, err = Update(db, a.ID, Input{Route: "Apprenticeships", Year: 2025, Amount: 175050}, nil)
	require.NoError(t, err)
	require.NoError(t, Delete(db, a.ID, nil))
	require.ErrorIs(t, Delete(db, a.ID, nil), ErrNotFound)

	history, err := History(db, Filter{Route: "Apprenticeships"})
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, models.FundingDeleted, history[0].ChangeType)
	assert.Equal(t, int64(175050), history[0].Amount)

	routes, err := Routes(db)
	require.NoError(t, err)
	assert.Equal(t, []string{"16-19", "Apprenticeships"}, routes)

	years, err := Years(db)
	require.NoError(t, err)
	assert.Equal(t, []int{2026, 2025}, years)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1234.56", 123456, false},
		{"£1,234.5", 123450, false},
		{"10", 1000, false},
		{"0.07", 7, false},
		{"", 0, true},
		{"1.234", 0, true},
		{"-5", 0, true},
		{"abc", 0, true},
		{"5.", 0, true},
		{".50", 0, true},
		{"1.+5", 0, true},
		{"1.-5", 0, true},
		{"+5", 0, true},
		{"1 000", 0, true},
		{"92233720368547757.99", 9223372036854775799, false},
		{"92233720368547758", 0, true},
		{"92233720368547759.99", 0, true},
		{"99999999999999999999", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAmount)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "1234.56", models.FormatPence(123456))
	assert.Equal(t, "-0.05", models.FormatPence(-5))
}
