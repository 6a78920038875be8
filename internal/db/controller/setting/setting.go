// Package setting stores named JSON documents that administrators can change
// at runtime, such as the SLA thresholds.
package setting

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
)

var (
	// ErrSettingNotFound is returned when no setting has the given name.
	ErrSettingNotFound = errors.New("setting not found")
	// ErrSettingNameEmpty is returned for an empty setting name.
	ErrSettingNameEmpty = errors.New("setting name cannot be empty")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
	// ErrInvalidValue is returned when a stored value is not valid JSON for the target.
	ErrInvalidValue = errors.New("setting value is not valid")
)

func check(db *gorm.DB, name string) error {
	switch {
	case db == nil:
		return ErrDBNil
	case name == "":
		return ErrSettingNameEmpty
	default:
		return nil
	}
}

// Get returns the named setting.
func Get(db *gorm.DB, name string) (*models.Setting, error) {
	if err := check(db, name); err != nil {
		return nil, err
	}

	var s models.Setting

	err := db.Where("name = ?", name).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSettingNotFound
	}

	if err != nil {
		return nil, err
	}

	return &s, nil
}

// Set stores value under name, replacing any previous value.
func Set(db *gorm.DB, name string, value []byte) (*models.Setting, error) {
	if err := check(db, name); err != nil {
		return nil, err
	}

	s := models.Setting{Name: name, Value: value, UpdatedAt: time.Now()}

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&s).Error
	if err != nil {
		return nil, err
	}

	// the upsert does not report the id of an updated row on every engine
	return Get(db, name)
}

// Delete removes the named setting.
func Delete(db *gorm.DB, name string) error {
	if err := check(db, name); err != nil {
		return err
	}

	res := db.Where("name = ?", name).Delete(&models.Setting{})
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return ErrSettingNotFound
	}

	return nil
}

// LoadJSON decodes the named setting into out.
func LoadJSON(db *gorm.DB, name string, out any) error {
	s, err := Get(db, name)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(s.Value, out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidValue, name, err)
	}

	return nil
}

// SaveJSON encodes in and stores it under name.
func SaveJSON(db *gorm.DB, name string, in any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidValue, name, err)
	}

	_, err = Set(db, name, data)

	return err
}
