package refdata

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
)

// ListValues returns the values of an item in display order.
func ListValues(db *gorm.DB, itemID uint64) ([]models.ReferenceValue, error) {
	if _, err := GetItem(db, itemID); err != nil {
		return nil, err
	}

	var out []models.ReferenceValue
	err := db.Where("item_id = ?", itemID).Order("display_order, value").Find(&out).Error

	return out, err
}

// GetValue loads one value.
func GetValue(db *gorm.DB, id uint64) (*models.ReferenceValue, error) {
	var out models.ReferenceValue

	err := db.Where(whereIDIs, id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrValueNotFound
	}
	if err != nil {
		return nil, err
	}

	return &out, nil
}

// CreateValue adds a value to an item. A new default clears the item's other defaults.
func CreateValue(db *gorm.DB, v *models.ReferenceValue) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if _, err := GetItem(tx, v.ItemID); err != nil {
			return err
		}

		if v.IsDefault {
			if err := clearDefaults(tx, v.ItemID, 0); err != nil {
				return err
			}
		}

		if err := tx.Create(v).Error; err != nil {
			return fmt.Errorf("failed to create value: %w", err)
		}

		return touchItem(tx, v.ItemID)
	})
}

// UpdateValue saves a value. A new default clears the item's other defaults.
func UpdateValue(db *gorm.DB, id uint64, in models.ReferenceValue) (*models.ReferenceValue, error) {
	var out *models.ReferenceValue

	err := db.Transaction(func(tx *gorm.DB) error {
		v, err := GetValue(tx, id)
		if err != nil {
			return err
		}

		if in.IsDefault {
			if err := clearDefaults(tx, v.ItemID, v.ID); err != nil {
				return err
			}
		}

		if err := tx.Model(v).Select("value", "display_name", "description", "display_order", "is_default").
			Updates(models.ReferenceValue{
				Value:        in.Value,
				DisplayName:  in.DisplayName,
				Description:  in.Description,
				DisplayOrder: in.DisplayOrder,
				IsDefault:    in.IsDefault,
			}).Error; err != nil {
			return fmt.Errorf("failed to update value: %w", err)
		}

		out = v

		return touchItem(tx, v.ItemID)
	})
	if err != nil {
		return nil, err
	}

	return GetValue(db, out.ID)
}

// DeleteValue soft deletes a value and returns the item it belonged to.
func DeleteValue(db *gorm.DB, id uint64) (uint64, error) {
	v, err := GetValue(db, id)
	if err != nil {
		return 0, err
	}

	if err := db.Delete(v).Error; err != nil {
		return 0, err
	}

	return v.ItemID, nil
}

func clearDefaults(tx *gorm.DB, itemID, except uint64) error {
	q := tx.Model(&models.ReferenceValue{}).Where("item_id = ? AND is_default = ?", itemID, true)
	if except > 0 {
		q = q.Where("id <> ?", except)
	}

	return q.Update("is_default", false).Error
}

// touchItem marks an unchanged item as updated when its values change.
func touchItem(tx *gorm.DB, itemID uint64) error {
	return tx.Model(&models.ReferenceData{}).
		Where("id = ? AND change_type = ?", itemID, models.ChangeUnchanged).
		Update("change_type", models.ChangeUpdated).Error
}
