package refdata

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
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.AcademicYear{}, &models.ReferenceData{}, &models.ReferenceValue{}, &models.RestorePoint{},
	))

	return db
}

func newItem(t *testing.T, db *gorm.DB, code, name, category string) *models.ReferenceData {
	t.Helper()

	item := &models.ReferenceData{Code: code, Name: name, Category: category}
	require.NoError(t, CreateItem(db, item))

	return item
}

func TestListItems(t *testing.T) {
	db := setupTestDB(t)

	newItem(t, db, "FUND_ROUTE", "Funding route", "Funding")
	newItem(t, db, "PROV_TYPE", "Provider type", "Providers")
	deprecated := newItem(t, db, "OLD_ROUTE", "Archived route", "Funding")
	_, err := UpdateItem(db, deprecated.ID, models.ReferenceData{
		Code: "OLD_ROUTE", Name: "Archived route", Category: "Funding", Status: models.ItemDeprecated,
	})
	require.NoError(t, err)

	tests := []struct {
		name      string
		filter    ItemFilter
		wantCodes []string
	}{
		{name: "sorted by name", filter: ItemFilter{}, wantCodes: []string{"OLD_ROUTE", "FUND_ROUTE", "PROV_TYPE"}},
		{name: "search", filter: ItemFilter{Search: "route"}, wantCodes: []string{"OLD_ROUTE", "FUND_ROUTE"}},
		{name: "category", filter: ItemFilter{Category: "Providers"}, wantCodes: []string{"PROV_TYPE"}},
		{name: "status", filter: ItemFilter{Status: models.ItemDeprecated}, wantCodes: []string{"OLD_ROUTE"}},
		{name: "paged", filter: ItemFilter{Page: 2, PageSize: 2}, wantCodes: []string{"PROV_TYPE"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, _, err := ListItems(db, tt.filter)
			require.NoError(t, err)

			codes := make([]string, 0, len(items))
			for _, i := range items {
				codes = append(codes, i.Code)
			}
			assert.Equal(t, tt.wantCodes, codes)
		})
	}

	cats, err := Categories(db)
	require.NoError(t, err)
	assert.Equal(t, []string{"Funding", "Providers"}, cats)
}

func TestSingleDefaultValue(t *testing.T) {
	db := setupTestDB(t)
	item := newItem(t, db, "FUND_ROUTE", "Funding route", "Funding")

	a := &models.ReferenceValue{ItemID: item.ID, Value: "A", DisplayName: "Route A", IsDefault: true}
	b := &models.ReferenceValue{ItemID: item.ID, Value: "B", DisplayName: "Route B", DisplayOrder: 1}
	require.NoError(t, CreateValue(db, a))
	require.NoError(t, CreateValue(db, b))

	_, err := UpdateValue(db, b.ID, models.ReferenceValue{Value: "B", DisplayName: "Route B", IsDefault: true})
	require.NoError(t, err)

	values, err := ListValues(db, item.ID)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.False(t, values[0].IsDefault)
	assert.True(t, values[1].IsDefault)

	err = CreateValue(db, &models.ReferenceValue{ItemID: 999, Value: "X"})
	require.ErrorIs(t, err, ErrItemNotFound)

	itemID, err := DeleteValue(db, a.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, itemID)
	_, err = GetValue(db, a.ID)
	require.ErrorIs(t, err, ErrValueNotFound)
}

func TestDeleteItemAndHistory(t *testing.T) {
	db := setupTestDB(t)

	y1 := models.AcademicYear{Name: "24/25", Code: "AY24/25", FullName: "2024/2025", Status: models.YearPast}
	y2 := models.AcademicYear{Name: "25/26", Code: "AY25/26", FullName: "2025/2026", Status: models.YearCurrent}
	y1.StartDate = mustDate(t, "2024-09-01")
	y2.StartDate = mustDate(t, "2025-09-01")
	require.NoError(t, db.Create(&y1).Error)
	require.NoError(t, db.Create(&y2).Error)

	old := &models.ReferenceData{Code: "FUND_ROUTE", Name: "Funding route", AcademicYearID: &y1.ID}
	cur := &models.ReferenceData{Code: "FUND_ROUTE", Name: "Funding route v2", AcademicYearID: &y2.ID}
	require.NoError(t, CreateItem(db, old))
	require.NoError(t, CreateItem(db, cur))

	history, err := History(db, cur.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, cur.ID, history[0].ID)

	require.NoError(t, DeleteItem(db, cur.ID))
	require.ErrorIs(t, DeleteItem(db, cur.ID), ErrItemNotFound)

	n, err := Count(db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRestorePoint(t *testing.T) {
	db := setupTestDB(t)

	item := newItem(t, db, "FUND_ROUTE", "Funding route", "Funding")
	require.NoError(t, CreateValue(db, &models.ReferenceValue{ItemID: item.ID, Value: "A", DisplayName: "A"}))

	rp, err := CreateRestorePoint(db, "before cleanup", "", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rp.ItemCount)

	require.NoError(t, DeleteItem(db, item.ID))
	newItem(t, db, "TEMP", "Temporary", "")

	restored, err := Restore(db, rp.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, restored)

	got, err := GetItem(db, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "FUND_ROUTE", got.Code)
	assert.Len(t, got.Values, 1)

	n, err := Count(db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	points, err := ListRestorePoints(db)
	require.NoError(t, err)
	assert.Len(t, points, 1)

	_, err = Restore(db, 999)
	require.ErrorIs(t, err, ErrRestorePointNotFound)
}
