// Package academicyear manages academic years, their breaks and their computed status.
package academicyear

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
)

var (
	// ErrNotFound is returned when the academic year does not exist.
	ErrNotFound = errors.New("academic year not found")
	// ErrInvalidStart is returned when the start is neither a year nor 1 September.
	ErrInvalidStart = errors.New("academic year must start on 1 September")
	// ErrExists is returned when an academic year with the same start already exists.
	ErrExists = errors.New("academic year already exists")
	// ErrInvalidBreak is returned when a break is outside its year or ends before it starts.
	ErrInvalidBreak = errors.New("break must fall within the academic year")
	// ErrInvalidStatus is returned for an unknown status.
	ErrInvalidStatus = errors.New("invalid academic year status")
)

const whereIDIs = "id = ?"

// Statuses lists the valid academic year statuses.
var Statuses = []string{models.YearFuture, models.YearNext, models.YearCurrent, models.YearPast, models.YearArchived}

// ParseStart accepts "2025" or "2025-09-01" and returns 1 September of that year.
func ParseStart(in string) (time.Time, error) {
	in = strings.TrimSpace(in)

	if year, err := strconv.Atoi(in); err == nil {
		if year < 1900 || year > 9999 {
			return time.Time{}, ErrInvalidStart
		}

		return time.Date(year, time.September, 1, 0, 0, 0, 0, time.UTC), nil
	}

	d, err := time.Parse(time.DateOnly, in)
	if err != nil || d.Month() != time.September || d.Day() != 1 {
		return time.Time{}, ErrInvalidStart
	}

	return d, nil
}

// New derives every field of the academic year starting at start.
func New(start time.Time, today time.Time) models.AcademicYear {
	y := start.Year()

	ay := models.AcademicYear{
		StartDate: start,
		EndDate:   time.Date(y+1, time.August, 31, 0, 0, 0, 0, time.UTC),
		Name:      fmt.Sprintf("%02d/%02d", y%100, (y+1)%100),
		Code:      fmt.Sprintf("AY%02d/%02d", y%100, (y+1)%100),
		FullName:  fmt.Sprintf("%d/%d", y, y+1),
	}
	ay.Status = StatusAt(&ay, today)

	return ay
}

// StatusAt returns Future, Current or Past for the year at the given day.
func StatusAt(ay *models.AcademicYear, today time.Time) string {
	d := dateOnly(today)

	switch {
	case d.Before(ay.StartDate):
		return models.YearFuture
	case d.After(ay.EndDate):
		return models.YearPast
	default:
		return models.YearCurrent
	}
}

// Create stores a new academic year starting at start.
func Create(db *gorm.DB, start time.Time, today time.Time) (*models.AcademicYear, error) {
	if start.Month() != time.September || start.Day() != 1 {
		return nil, ErrInvalidStart
	}

	var count int64
	if err := db.Model(&models.AcademicYear{}).Where("start_date = ?", start).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrExists
	}

	ay := New(start, today)
	if err := db.Create(&ay).Error; err != nil {
		return nil, fmt.Errorf("failed to create academic year: %w", err)
	}

	return &ay, nil
}

// List returns academic years ordered by start date, optionally filtered by status.
func List(db *gorm.DB, status string) ([]models.AcademicYear, error) {
	q := db.Order("start_date")
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var out []models.AcademicYear
	err := q.Find(&out).Error

	return out, err
}

// Get loads an academic year with its breaks.
func Get(db *gorm.DB, id uint) (*models.AcademicYear, error) {
	var out models.AcademicYear

	err := db.Preload("Breaks", func(tx *gorm.DB) *gorm.DB { return tx.Order("start_date") }).
		Where(whereIDIs, id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &out, nil
}

// SetStatus overrides the status of a year. UpdateStatuses recomputes every
// status other than Archived, so an override of Future, Next, Current or Past
// lasts until the next status run; archiving is permanent.
// The returned change tells the caller whether the year's releases are due.
func SetStatus(db *gorm.DB, id uint, status string) (Change, error) {
	valid := false
	for _, s := range Statuses {
		valid = valid || s == status
	}
	if !valid {
		return Change{}, ErrInvalidStatus
	}

	ay, err := Get(db, id)
	if err != nil {
		return Change{}, err
	}

	if err := db.Model(ay).Update("status", status).Error; err != nil {
		return Change{}, err
	}

	change := Change{Year: *ay, OldStatus: ay.Status, NewStatus: status}
	change.Year.Status = status

	return change, nil
}

// Delete removes an academic year together with its breaks and releases.
// BCRs scheduled for those releases become unscheduled.
func Delete(db *gorm.DB, id uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if _, err := Get(tx, id); err != nil {
			return err
		}

		releases := tx.Model(&models.Release{}).Select("id").Where("academic_year_id = ?", id)
		if err := tx.Model(&models.Bcr{}).Where("release_id IN (?)", releases).Update("release_id", nil).Error; err != nil {
			return err
		}

		if err := tx.Where("academic_year_id = ?", id).Delete(&models.AcademicBreak{}).Error; err != nil {
			return err
		}

		if err := tx.Where("academic_year_id = ?", id).Delete(&models.Release{}).Error; err != nil {
			return err
		}

		return tx.Delete(&models.AcademicYear{}, id).Error
	})
}

// AddBreak adds a holiday to an academic year.
func AddBreak(db *gorm.DB, yearID uint, name string, start, end time.Time) (*models.AcademicBreak, error) {
	ay, err := Get(db, yearID)
	if err != nil {
		return nil, err
	}

	if end.Before(start) || start.Before(ay.StartDate) || end.After(ay.EndDate) {
		return nil, ErrInvalidBreak
	}

	b := &models.AcademicBreak{AcademicYearID: yearID, Name: strings.TrimSpace(name), StartDate: start, EndDate: end}
	if err := db.Create(b).Error; err != nil {
		return nil, fmt.Errorf("failed to create break: %w", err)
	}

	return b, nil
}

// DeleteBreak removes a holiday.
func DeleteBreak(db *gorm.DB, yearID, breakID uint) error {
	result := db.Where("id = ? AND academic_year_id = ?", breakID, yearID).Delete(&models.AcademicBreak{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Change is a status change made by UpdateStatuses or SetStatus.
type Change struct {
	Year      models.AcademicYear
	OldStatus string
	NewStatus string
}

// UpdateStatuses recomputes the status of every non-archived year at today.
// The earliest future year that starts right after the current one becomes Next.
func UpdateStatuses(db *gorm.DB, today time.Time) ([]Change, error) {
	var changes []Change

	err := db.Transaction(func(tx *gorm.DB) error {
		var years []models.AcademicYear
		if err := tx.Where("status <> ?", models.YearArchived).Order("start_date").Find(&years).Error; err != nil {
			return err
		}

		statuses := make([]string, len(years))
		var current *models.AcademicYear

		for i := range years {
			statuses[i] = StatusAt(&years[i], today)
			if statuses[i] == models.YearCurrent {
				current = &years[i]
			}
		}

		if current != nil {
			for i := range years {
				if statuses[i] == models.YearFuture && years[i].StartDate.Equal(current.EndDate.AddDate(0, 0, 1)) {
					statuses[i] = models.YearNext
				}
			}
		}

		for i := range years {
			if years[i].Status == statuses[i] {
				continue
			}

			oldStatus := years[i].Status

			if err := tx.Model(&years[i]).Update("status", statuses[i]).Error; err != nil {
				return err
			}

			years[i].Status = statuses[i]
			changes = append(changes, Change{Year: years[i], OldStatus: oldStatus, NewStatus: statuses[i]})
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return changes, nil
}

// TriggersReleases reports whether the change should generate the year's releases.
func (c Change) TriggersReleases() bool {
	becameActive := c.NewStatus == models.YearCurrent || c.NewStatus == models.YearNext
	wasActive := c.OldStatus == models.YearCurrent || c.OldStatus == models.YearNext

	return becameActive && !wasActive
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()

	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
