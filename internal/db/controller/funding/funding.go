// Package funding manages funding requirements and their change history.
package funding

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
)

var (
	// ErrNotFound is returned when the funding requirement does not exist.
	ErrNotFound = errors.New("funding requirement not found")
	// ErrInvalidAmount is returned when an amount cannot be parsed as pounds and pence.
	ErrInvalidAmount = errors.New("invalid amount")
)

// FilterAll disables a filter.
const FilterAll = "all"

const whereIDIs = "id = ?"

// Filter narrows List and History. Empty or "all" values match everything.
type Filter struct {
	Route string
	Year  string
}

func (f Filter) apply(q *gorm.DB) *gorm.DB {
	if f.Route != "" && f.Route != FilterAll {
		q = q.Where("route = ?", f.Route)
	}

	if year, err := strconv.Atoi(f.Year); err == nil {
		q = q.Where("year = ?", year)
	}

	return q
}

// Input holds the editable fields of a funding requirement.
type Input struct {
	Route       string
	Year        int
	Amount      int64
	Description string
}

// List returns funding requirements ordered by year descending, then route.
func List(db *gorm.DB, f Filter) ([]models.Funding, error) {
	var out []models.Funding
	err := f.apply(db.Model(&models.Funding{})).Order("year DESC, route ASC").Find(&out).Error

	return out, err
}

// Get loads one funding requirement.
func Get(db *gorm.DB, id uint64) (*models.Funding, error) {
	var out models.Funding

	err := db.Where(whereIDIs, id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &out, nil
}

// Create stores a requirement and its history entry in one transaction.
func Create(db *gorm.DB, in Input, userID *uint64) (*models.Funding, error) {
	f := &models.Funding{
		Route:       strings.TrimSpace(in.Route),
		Year:        in.Year,
		Amount:      in.Amount,
		Description: in.Description,
		CreatedByID: userID,
		UpdatedByID: userID,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(f).Error; err != nil {
			return fmt.Errorf("failed to create funding requirement: %w", err)
		}

		return record(tx, f, models.FundingCreated, userID)
	})
	if err != nil {
		return nil, err
	}

	return f, nil
}

// Update changes a requirement and records the change in one transaction.
func Update(db *gorm.DB, id uint64, in Input, userID *uint64) (*models.Funding, error) {
	var f *models.Funding

	err := db.Transaction(func(tx *gorm.DB) error {
		var err error

		f, err = Get(tx, id)
		if err != nil {
			return err
		}

		f.Route = strings.TrimSpace(in.Route)
		f.Year = in.Year
		f.Amount = in.Amount
		f.Description = in.Description
		f.UpdatedByID = userID

		if err := tx.Save(f).Error; err != nil {
			return fmt.Errorf("failed to update funding requirement: %w", err)
		}

		return record(tx, f, models.FundingUpdated, userID)
	})
	if err != nil {
		return nil, err
	}

	return f, nil
}

// Delete removes a requirement and records the deletion in one transaction.
func Delete(db *gorm.DB, id uint64, userID *uint64) error {
	return db.Transaction(func(tx *gorm.DB) error {
		f, err := Get(tx, id)
		if err != nil {
			return err
		}

		if err := record(tx, f, models.FundingDeleted, userID); err != nil {
			return err
		}

		return tx.Delete(f).Error
	})
}

// History returns history entries, newest first.
func History(db *gorm.DB, f Filter) ([]models.FundingHistory, error) {
	var out []models.FundingHistory
	err := f.apply(db.Model(&models.FundingHistory{})).Preload("ChangedBy").
		Order("changed_at DESC, id DESC").Find(&out).Error

	return out, err
}

// Routes returns the distinct routes with requirements.
func Routes(db *gorm.DB) ([]string, error) {
	var out []string
	err := db.Model(&models.Funding{}).Distinct("route").Order("route").Pluck("route", &out).Error

	return out, err
}

// Years returns the distinct years with requirements, newest first.
func Years(db *gorm.DB) ([]int, error) {
	var out []int
	err := db.Model(&models.Funding{}).Distinct("year").Order("year DESC").Pluck("year", &out).Error

	return out, err
}

// maxPounds keeps pounds*100 + 99 within int64.
const maxPounds = (math.MaxInt64 - 99) / 100

// ParseAmount parses "1,234.5" or "£1234.56" into pence.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(strings.NewReplacer(",", "", "£", "").Replace(s))

	whole, frac, hasFrac := strings.Cut(s, ".")
	if !digits(whole) || hasFrac && (!digits(frac) || len(frac) > 2) {
		return 0, ErrInvalidAmount
	}

	pounds, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || pounds > maxPounds {
		return 0, ErrInvalidAmount
	}

	var pence int64

	if hasFrac {
		if len(frac) == 1 {
			frac += "0"
		}

		pence, _ = strconv.ParseInt(frac, 10, 64)
	}

	return pounds*100 + pence, nil
}

// digits reports whether s is a non-empty run of ASCII digits.
func digits(s string) bool {
	if s == "" {
		return false
	}

	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return true
}

func record(tx *gorm.DB, f *models.Funding, change string, userID *uint64) error {
	h := models.FundingHistory{
		FundingID:   f.ID,
		Route:       f.Route,
		Year:        f.Year,
		Amount:      f.Amount,
		ChangeType:  change,
		ChangedByID: userID,
		ChangedAt:   time.Now(),
	}

	if err := tx.Create(&h).Error; err != nil {
		return fmt.Errorf("failed to record funding history: %w", err)
	}

	return nil
}
