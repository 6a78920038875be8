// Package bcrconfig manages BcrConfig rows, in particular impact areas.
package bcrconfig

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
)

var (
	// ErrNotFound is returned when the config row does not exist.
	ErrNotFound = errors.New("config not found")
	// ErrNameEmpty is returned when an impact area has no name.
	ErrNameEmpty = errors.New("name cannot be empty")
	// ErrInUse is returned when deleting an impact area still linked to BCRs.
	ErrInUse = errors.New("impact area is used by one or more BCRs")
)

const whereTypeIs = "type = ?"

// ImpactAreaValue derives the stored value from a display name: "Reference Data" becomes "reference_data".
func ImpactAreaValue(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// ListByType returns the rows of one type in display order.
func ListByType(db *gorm.DB, kind string) ([]models.BcrConfig, error) {
	var out []models.BcrConfig
	if err := db.Where(whereTypeIs, kind).Order("display_order, name").Find(&out).Error; err != nil {
		return nil, err
	}

	return out, nil
}

// ImpactArea input for create and update.
type ImpactArea struct {
	Name        string
	Description string
	Order       int
}

// GetImpactArea returns one impact area.
func GetImpactArea(db *gorm.DB, id uint) (*models.BcrConfig, error) {
	var area models.BcrConfig

	err := db.Where(whereTypeIs, models.ConfigTypeImpactArea).First(&area, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &area, nil
}

// CreateImpactArea adds an impact area. Duplicate names surface as unique violations.
func CreateImpactArea(db *gorm.DB, in ImpactArea) (*models.BcrConfig, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, ErrNameEmpty
	}

	area := &models.BcrConfig{
		Type:         models.ConfigTypeImpactArea,
		Name:         strings.TrimSpace(in.Name),
		Value:        ImpactAreaValue(in.Name),
		DisplayOrder: in.Order,
		Description:  in.Description,
	}

	if err := db.Create(area).Error; err != nil {
		return nil, fmt.Errorf("failed to create impact area: %w", err)
	}

	return area, nil
}

// UpdateImpactArea renames or reorders an impact area.
func UpdateImpactArea(db *gorm.DB, id uint, in ImpactArea) (*models.BcrConfig, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, ErrNameEmpty
	}

	area, err := GetImpactArea(db, id)
	if err != nil {
		return nil, err
	}

	area.Name = strings.TrimSpace(in.Name)
	area.Value = ImpactAreaValue(in.Name)
	area.DisplayOrder = in.Order
	area.Description = in.Description

	if err := db.Save(area).Error; err != nil {
		return nil, fmt.Errorf("failed to update impact area: %w", err)
	}

	return area, nil
}

// UsageCount returns how many BCRs reference the impact area.
func UsageCount(db *gorm.DB, id uint) (int64, error) {
	var n int64
	err := db.Table("bcr_impacted_areas").Where("config_id = ?", id).Count(&n).Error

	return n, err
}

// DeleteImpactArea removes an impact area that no BCR uses.
func DeleteImpactArea(db *gorm.DB, id uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if _, err := GetImpactArea(tx, id); err != nil {
			return err
		}

		used, err := UsageCount(tx, id)
		if err != nil {
			return err
		}
		if used > 0 {
			return ErrInUse
		}

		return tx.Delete(&models.BcrConfig{}, id).Error
	})
}
