// Package bcr provides queries over Business Change Requests.
package bcr

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/workflow"
)

// ErrNotFound is returned when the BCR does not exist.
var ErrNotFound = errors.New("bcr not found")

// MaxPageSize caps the page size of List.
const MaxPageSize = 100

// Filter narrows List results.
type Filter struct {
	Search   string
	Status   string
	Phase    int
	Urgency  string
	Page     int
	PageSize int
}

// List returns one page of BCRs, newest first, with the total match count.
func List(db *gorm.DB, f Filter) ([]models.Bcr, int64, error) {
	q := db.Model(&models.Bcr{})

	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(bcr_number) LIKE ? OR LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like, like)
	}

	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	if f.Phase > 0 {
		q = q.Where("status IN ?", []string{
			workflow.StatusValue(f.Phase, false),
			workflow.StatusValue(f.Phase, true),
		})
	}

	if f.Urgency != "" {
		q = q.Where("LOWER(urgency_level) = ?", strings.ToLower(f.Urgency))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bcrs: %w", err)
	}

	page, size := normalisePage(f.Page, f.PageSize)

	var out []models.Bcr
	if err := q.Preload("AssignedTo").Order("created_at DESC, record_number DESC").
		Limit(size).Offset((page - 1) * size).Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bcrs: %w", err)
	}

	return out, total, nil
}

// Get loads a BCR with its people and impacted areas.
func Get(db *gorm.DB, id string) (*models.Bcr, error) {
	var out models.Bcr

	err := db.Preload("ImpactedAreas", func(tx *gorm.DB) *gorm.DB { return tx.Order("display_order") }).
		Preload("RequestedBy").Preload("AssignedTo").Preload("Release").
		Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &out, nil
}

// GetBySubmission returns the BCR created from a submission.
func GetBySubmission(db *gorm.DB, submissionID string) (*models.Bcr, error) {
	var out models.Bcr

	err := db.Where("submission_id = ?", submissionID).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &out, nil
}

// Count is a label with a number of BCRs.
type Count struct {
	Label string
	Total int64
}

// CountByStatus counts BCRs per status value.
func CountByStatus(db *gorm.DB) ([]Count, error) {
	var out []Count

	err := db.Model(&models.Bcr{}).Select("status AS label, COUNT(*) AS total").
		Group("status").Order("status").Scan(&out).Error

	return out, err
}

// CountByPhase counts BCRs per workflow phase, including phases with none.
// Index 0 counts closed and rejected BCRs.
func CountByPhase(db *gorm.DB) ([]int64, error) {
	byStatus, err := CountByStatus(db)
	if err != nil {
		return nil, err
	}

	out := make([]int64, workflow.FinalPhase+1)
	for _, c := range byStatus {
		out[workflow.CurrentPhase(c.Label)] += c.Total
	}

	return out, nil
}

// Recent returns the n most recently updated BCRs.
func Recent(db *gorm.DB, n int) ([]models.Bcr, error) {
	var out []models.Bcr
	err := db.Order("updated_at DESC").Limit(n).Find(&out).Error

	return out, err
}

func normalisePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}

	if size < 1 {
		size = 25
	}

	return page, min(size, MaxPageSize)
}
