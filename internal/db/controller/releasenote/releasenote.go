// Package releasenote provides CRUD operations for release notes.
package releasenote

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
)

// ErrNotFound is returned when the release note does not exist.
var ErrNotFound = errors.New("release note not found")

const whereIDIs = "id = ?"

// List returns all release notes, newest release first.
func List(db *gorm.DB) ([]models.ReleaseNote, error) {
	var out []models.ReleaseNote
	err := db.Order("release_date DESC, id DESC").Find(&out).Error

	return out, err
}

// Get loads one release note.
func Get(db *gorm.DB, id uint64) (*models.ReleaseNote, error) {
	var out models.ReleaseNote

	err := db.Where(whereIDIs, id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &out, nil
}

// Create stores a release note. A duplicate version fails with a unique violation.
func Create(db *gorm.DB, n *models.ReleaseNote) error {
	if err := db.Create(n).Error; err != nil {
		return fmt.Errorf("failed to create release note: %w", err)
	}

	return nil
}

// Update replaces the content of a release note.
func Update(db *gorm.DB, id uint64, in models.ReleaseNote) (*models.ReleaseNote, error) {
	n, err := Get(db, id)
	if err != nil {
		return nil, err
	}

	n.Version = in.Version
	n.ReleaseDate = in.ReleaseDate
	n.Title = in.Title
	n.Description = in.Description
	n.Features = in.Features
	n.BugFixes = in.BugFixes

	if err := db.Save(n).Error; err != nil {
		return nil, fmt.Errorf("failed to update release note: %w", err)
	}

	return n, nil
}

// Delete removes a release note.
func Delete(db *gorm.DB, id uint64) error {
	result := db.Delete(&models.ReleaseNote{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Count returns the number of release notes.
func Count(db *gorm.DB) (int64, error) {
	var n int64
	err := db.Model(&models.ReleaseNote{}).Count(&n).Error

	return n, err
}
