// Package submission stores BCR submissions and applies review outcomes.
package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	bcrcontroller "github.com/dfe-rrdm/rrdm/internal/db/controller/bcr"
	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/workflow"
)

// Review outcomes.
const (
	OutcomeApprove  = "approve"
	OutcomeReject   = "reject"
	OutcomeMoreInfo = "more-info"
	OutcomePause    = "pause"
	OutcomeClose    = "close"
)

var outcomeStatus = map[string]string{
	OutcomeApprove:  models.SubmissionApproved,
	OutcomeReject:   models.SubmissionRejected,
	OutcomeMoreInfo: models.SubmissionMoreInfoRequired,
	OutcomePause:    models.SubmissionPaused,
	OutcomeClose:    models.SubmissionClosed,
}

var (
	// ErrNotFound is returned when the submission does not exist.
	ErrNotFound = errors.New("submission not found")
	// ErrDeleted is returned when reviewing a deleted submission.
	ErrDeleted = errors.New("submission has been deleted")
	// ErrInvalidOutcome is returned for an unknown review outcome.
	ErrInvalidOutcome = errors.New("invalid review outcome")
	// ErrNotDeleted is returned when reinstating a submission that is not deleted.
	ErrNotDeleted = errors.New("submission is not deleted")
)

const (
	whereIDIs     = "id = ?"
	maxTitleRunes = 100
)

// Filter narrows List results.
type Filter struct {
	Status      string
	Search      string
	ShowDeleted bool
	Page        int
	PageSize    int
}

// Review is a reviewer's decision on a submission.
type Review struct {
	Outcome  string
	Comments string
	UserID   *uint64
}

// Create stores a new pending submission with the next submission code.
func Create(db *gorm.DB, s *models.Submission, now time.Time) error {
	return db.Transaction(func(tx *gorm.DB) error {
		record, err := workflow.NextRecordNumber(tx, &models.Submission{})
		if err != nil {
			return err
		}

		s.RecordNumber = record
		s.SubmissionCode = workflow.SubmissionCode(now, record)
		s.Status = models.SubmissionPending

		if err := tx.Create(s).Error; err != nil {
			return fmt.Errorf("failed to create submission: %w", err)
		}

		return nil
	})
}

// List returns one page of submissions, newest first. Deleted submissions are
// listed only when ShowDeleted is set, and then exclusively.
func List(db *gorm.DB, f Filter) ([]models.Submission, int64, error) {
	q := db.Model(&models.Submission{})
	if f.ShowDeleted {
		q = q.Unscoped().Where("deleted_at IS NOT NULL")
	}

	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(submission_code) LIKE ? OR LOWER(full_name) LIKE ? OR LOWER(brief_description) LIKE ?",
			like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count submissions: %w", err)
	}

	page, size := max(f.Page, 1), f.PageSize
	if size < 1 || size > bcrcontroller.MaxPageSize {
		size = 25
	}

	var out []models.Submission
	if err := q.Order("created_at DESC").Limit(size).Offset((page - 1) * size).Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list submissions: %w", err)
	}

	return out, total, nil
}

// Get loads a submission. With withDeleted set, soft deleted rows are returned too.
func Get(db *gorm.DB, id string, withDeleted bool) (*models.Submission, error) {
	q := db.Preload("ReviewedBy")
	if withDeleted {
		q = q.Unscoped()
	}

	var out models.Submission

	err := q.Where(whereIDIs, id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &out, nil
}

// ApplyReview records a review. Approving creates the BCR in the same
// transaction; approving again returns the BCR created the first time.
func ApplyReview(ctx context.Context, db *gorm.DB, wf *workflow.Service, id string, r Review) (
	*models.Submission, *models.Bcr, error,
) {
	status, ok := outcomeStatus[r.Outcome]
	if !ok {
		return nil, nil, ErrInvalidOutcome
	}

	var (
		sub *models.Submission
		bcr *models.Bcr
	)

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error

		sub, err = Get(tx, id, true)
		if err != nil {
			return err
		}

		if sub.DeletedAt.Valid {
			return ErrDeleted
		}

		if r.Outcome == OutcomeApprove {
			bcr, err = approve(tx, wf, sub, r)
			if err != nil {
				return err
			}
		}

		now := time.Now()
		sub.Status = status
		sub.ReviewOutcome = r.Outcome
		sub.ReviewComments = r.Comments
		sub.ReviewedAt = &now
		sub.ReviewedByID = r.UserID

		return tx.Model(sub).Select("status", "review_outcome", "review_comments", "reviewed_at", "reviewed_by_id").
			Updates(sub).Error
	})
	if err != nil {
		return nil, nil, err
	}

	return sub, bcr, nil
}

func approve(tx *gorm.DB, wf *workflow.Service, sub *models.Submission, r Review) (*models.Bcr, error) {
	existing, err := bcrcontroller.GetBySubmission(tx, sub.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, bcrcontroller.ErrNotFound) {
		return nil, err
	}

	return wf.CreateTx(tx, workflow.NewBcr{
		Title:            Title(sub.BriefDescription),
		Description:      sub.BriefDescription,
		Impact:           sub.Justification,
		UrgencyLevel:     sub.UrgencyLevel,
		ImpactAreaValues: SplitAreas(sub.ImpactAreas),
		RequestedByID:    sub.SubmittedByID,
		SubmissionID:     &sub.ID,
		Comment:          "Created from submission " + sub.SubmissionCode + ".",
		UserID:           r.UserID,
	})
}

// Delete soft deletes a submission.
func Delete(db *gorm.DB, id string) error {
	result := db.Where(whereIDIs, id).Delete(&models.Submission{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Reinstate restores a soft deleted submission.
func Reinstate(db *gorm.DB, id string) error {
	sub, err := Get(db, id, true)
	if err != nil {
		return err
	}

	if !sub.DeletedAt.Valid {
		return ErrNotDeleted
	}

	return db.Unscoped().Model(&models.Submission{}).Where(whereIDIs, id).Update("deleted_at", nil).Error
}

// CountByStatus counts live submissions per status.
func CountByStatus(db *gorm.DB) (map[string]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}

	if err := db.Model(&models.Submission{}).Select("status, COUNT(*) AS total").
		Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Total
	}

	return out, nil
}

// Title derives a BCR title from the first line of a description.
func Title(description string) string {
	title, _, _ := strings.Cut(strings.TrimSpace(description), "\n")
	title = strings.TrimSpace(title)

	if utf8.RuneCountInString(title) <= maxTitleRunes {
		return title
	}

	return string([]rune(title)[:maxTitleRunes-3]) + "..."
}

// SplitAreas parses the comma separated impact area values of a submission.
func SplitAreas(s string) []string {
	var out []string

	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}

	return out
}
