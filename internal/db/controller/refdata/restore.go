package refdata

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
)

type snapshot struct {
	Items []models.ReferenceData `json:"items"`
}

// ListRestorePoints returns restore points, newest first.
func ListRestorePoints(db *gorm.DB) ([]models.RestorePoint, error) {
	var out []models.RestorePoint
	err := db.Preload("CreatedBy").Omit("snapshot").Order("created_at DESC, id DESC").Find(&out).Error

	return out, err
}

// CreateRestorePoint snapshots every live item and value.
func CreateRestorePoint(db *gorm.DB, name, description string, userID *uint64) (*models.RestorePoint, error) {
	var items []models.ReferenceData
	if err := db.Preload("Values").Order("id").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to read items: %w", err)
	}

	data, err := json.Marshal(snapshot{Items: items})
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	rp := &models.RestorePoint{
		Name:        name,
		Description: description,
		Snapshot:    data,
		ItemCount:   len(items),
		CreatedByID: userID,
	}

	if err := db.Create(rp).Error; err != nil {
		return nil, fmt.Errorf("failed to store restore point: %w", err)
	}

	return rp, nil
}

// Restore replaces all items and values with the content of a restore point.
func Restore(db *gorm.DB, id uint64) (int, error) {
	var rp models.RestorePoint

	err := db.Where(whereIDIs, id).First(&rp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrRestorePointNotFound
	}
	if err != nil {
		return 0, err
	}

	var snap snapshot
	if err := json.Unmarshal(rp.Snapshot, &snap); err != nil {
		return 0, fmt.Errorf("failed to decode restore point: %w", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().
			Delete(&models.ReferenceValue{}).Error; err != nil {
			return err
		}

		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().
			Delete(&models.ReferenceData{}).Error; err != nil {
			return err
		}

		for i := range snap.Items {
			item := snap.Items[i]
			values := item.Values
			item.Values = nil
			item.AcademicYear = nil

			if err := tx.Omit(clause.Associations).Create(&item).Error; err != nil {
				return fmt.Errorf("failed to restore item %s: %w", item.Code, err)
			}

			if len(values) > 0 {
				if err := tx.Create(&values).Error; err != nil {
					return fmt.Errorf("failed to restore values of %s: %w", item.Code, err)
				}
			}
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(snap.Items), nil
}
