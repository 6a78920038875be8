// Package refdata manages reference data items, their values and restore points.
package refdata

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
)

var (
	// ErrItemNotFound is returned when the item does not exist.
	ErrItemNotFound = errors.New("reference data item not found")
	// ErrValueNotFound is returned when the value does not exist.
	ErrValueNotFound = errors.New("reference value not found")
	// ErrRestorePointNotFound is returned when the restore point does not exist.
	ErrRestorePointNotFound = errors.New("restore point not found")
)

const (
	whereIDIs       = "id = ?"
	defaultPageSize = 25
	maxPageSize     = 100
)

// ItemFilter narrows ListItems results.
type ItemFilter struct {
	Search         string
	Category       string
	Status         string
	AcademicYearID uint
	Page           int
	PageSize       int
}

// ListItems returns one page of items sorted by name.
func ListItems(db *gorm.DB, f ItemFilter) ([]models.ReferenceData, int64, error) {
	q := db.Model(&models.ReferenceData{})

	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ? OR LOWER(description) LIKE ?", like, like, like)
	}

	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}

	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	if f.AcademicYearID > 0 {
		q = q.Where("academic_year_id = ?", f.AcademicYearID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count items: %w", err)
	}

	page, size := max(f.Page, 1), f.PageSize
	if size < 1 {
		size = defaultPageSize
	}
	size = min(size, maxPageSize)

	var out []models.ReferenceData
	if err := q.Preload("AcademicYear").Order("name, code").
		Limit(size).Offset((page - 1) * size).Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list items: %w", err)
	}

	return out, total, nil
}

// Categories returns the distinct item categories.
func Categories(db *gorm.DB) ([]string, error) {
	var out []string
	err := db.Model(&models.ReferenceData{}).Where("category <> ''").
		Distinct("category").Order("category").Pluck("category", &out).Error

	return out, err
}

// GetItem loads an item with its values in display order.
func GetItem(db *gorm.DB, id uint64) (*models.ReferenceData, error) {
	var out models.ReferenceData

	err := db.Preload("AcademicYear").
		Preload("Values", func(tx *gorm.DB) *gorm.DB { return tx.Order("display_order, value") }).
		Where(whereIDIs, id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}

	return &out, nil
}

// CreateItem stores a new item.
func CreateItem(db *gorm.DB, item *models.ReferenceData) error {
	if item.Status == "" {
		item.Status = models.ItemActive
	}

	if item.ChangeType == "" {
		item.ChangeType = models.ChangeNew
	}

	if err := db.Omit("Values", "AcademicYear").Create(item).Error; err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}

	return nil
}

// UpdateItem saves the editable fields of an item and marks it updated.
func UpdateItem(db *gorm.DB, id uint64, in models.ReferenceData) (*models.ReferenceData, error) {
	item, err := GetItem(db, id)
	if err != nil {
		return nil, err
	}

	changeType := in.ChangeType
	if changeType == "" {
		changeType = models.ChangeUpdated
	}

	err = db.Model(item).Select("code", "name", "description", "category", "status", "academic_year_id", "change_type").
		Updates(models.ReferenceData{
			Code:           in.Code,
			Name:           in.Name,
			Description:    in.Description,
			Category:       in.Category,
			Status:         in.Status,
			AcademicYearID: in.AcademicYearID,
			ChangeType:     changeType,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}

	return GetItem(db, id)
}

// DeleteItem soft deletes an item and its values.
func DeleteItem(db *gorm.DB, id uint64) error {
	return db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where(whereIDIs, id).Delete(&models.ReferenceData{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrItemNotFound
		}

		return tx.Where("item_id = ?", id).Delete(&models.ReferenceValue{}).Error
	})
}

// History returns every version of the item's code across academic years, newest year first.
func History(db *gorm.DB, id uint64) ([]models.ReferenceData, error) {
	item, err := GetItem(db, id)
	if err != nil {
		return nil, err
	}

	var out []models.ReferenceData

	err = db.Unscoped().Preload("AcademicYear").
		Joins("LEFT JOIN academic_years ON academic_years.id = reference_data.academic_year_id").
		Where("reference_data.code = ?", item.Code).
		Order("academic_years.start_date DESC, reference_data.updated_at DESC").
		Find(&out).Error

	return out, err
}

// Count returns the number of live items.
func Count(db *gorm.DB) (int64, error) {
	var n int64
	err := db.Model(&models.ReferenceData{}).Count(&n).Error

	return n, err
}
