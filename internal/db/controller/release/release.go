// Package release schedules and manages reference data releases.
package release

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/db/controller/academicyear"
	"github.com/dfe-rrdm/rrdm/internal/db/models"
)

// LeadTime separates a release's freeze cut-off from its go-live date.
// In-year releases start one lead time after the academic year begins.
const LeadTime = 14 * 24 * time.Hour

var (
	// ErrNotFound is returned when the release does not exist.
	ErrNotFound = errors.New("release not found")
	// ErrInvalidStatus is returned for an unknown release status.
	ErrInvalidStatus = errors.New("invalid release status")
	// ErrOutsideYear is returned when a go-live date falls outside its academic year.
	ErrOutsideYear = errors.New("go-live date must fall within the academic year")
	// ErrFreezeAfterGoLive is returned when the freeze cut-off is after the go-live date.
	ErrFreezeAfterGoLive = errors.New("freeze cut-off must be on or before the go-live date")
)

// Open lists the statuses of releases that can still take BCRs.
var Open = []string{models.ReleasePlanned, models.ReleaseInProgress}

// Statuses lists the valid release statuses.
var Statuses = []string{models.ReleasePlanned, models.ReleaseInProgress, models.ReleaseDeployed, models.ReleaseCancelled}

// Filter narrows List results.
type Filter struct {
	AcademicYearID uint
	Status         string
	Type           string
}

// List returns releases ordered by go-live date.
func List(db *gorm.DB, f Filter) ([]models.Release, error) {
	q := db.Preload("AcademicYear").Order("go_live_date, release_code")

	if f.AcademicYearID > 0 {
		q = q.Where("academic_year_id = ?", f.AcademicYearID)
	}

	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	if f.Type != "" {
		q = q.Where("release_type = ?", f.Type)
	}

	var out []models.Release
	err := q.Find(&out).Error

	return out, err
}

// Get loads one release.
func Get(db *gorm.DB, id uint64) (*models.Release, error) {
	var out models.Release

	err := db.Preload("AcademicYear").Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &out, nil
}

// Update changes the status and notes of a release.
func Update(db *gorm.DB, id uint64, status, notes string) (*models.Release, error) {
	valid := false
	for _, s := range Statuses {
		valid = valid || s == status
	}
	if !valid {
		return nil, ErrInvalidStatus
	}

	r, err := Get(db, id)
	if err != nil {
		return nil, err
	}

	if err := db.Model(r).Updates(map[string]any{"status": status, "notes": notes}).Error; err != nil {
		return nil, fmt.Errorf("failed to update release: %w", err)
	}

	r.Status, r.Notes = status, notes

	return r, nil
}

// Delete removes a release. BCRs scheduled for it become unscheduled.
func Delete(db *gorm.DB, id uint64) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := unschedule(tx, tx.Model(&models.Release{}).Select("id").Where("id = ?", id)); err != nil {
			return err
		}

		result := tx.Delete(&models.Release{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}

		return nil
	})
}

func unschedule(tx *gorm.DB, releaseIDs *gorm.DB) error {
	err := tx.Model(&models.Bcr{}).Where("release_id IN (?)", releaseIDs).Update("release_id", nil).Error
	if err != nil {
		return fmt.Errorf("failed to unschedule bcrs: %w", err)
	}

	return nil
}

// Adhoc describes an ad hoc release.
type Adhoc struct {
	AcademicYearID uint
	Name           string
	GoLiveDate     time.Time
	FreezeCutOff   *time.Time
	Notes          string
}

// CreateAdhoc adds an unscheduled release to an academic year. Codes run
// 25/26-AH-01, 25/26-AH-02 and so on within the year.
func CreateAdhoc(db *gorm.DB, in Adhoc) (*models.Release, error) {
	var out models.Release

	err := db.Transaction(func(tx *gorm.DB) error {
		ay, err := academicyear.Get(tx, in.AcademicYearID)
		if err != nil {
			return err
		}

		goLive := calendarDay(in.GoLiveDate)
		if goLive.Before(calendarDay(ay.StartDate)) || goLive.After(calendarDay(ay.EndDate)) {
			return ErrOutsideYear
		}

		var cutOff *time.Time
		if in.FreezeCutOff != nil {
			d := calendarDay(*in.FreezeCutOff)
			if d.After(goLive) {
				return ErrFreezeAfterGoLive
			}

			cutOff = &d
		}

		var codes []string
		if err := tx.Model(&models.Release{}).Where("academic_year_id = ? AND release_type = ?", ay.ID, models.ReleaseAdhoc).
			Pluck("release_code", &codes).Error; err != nil {
			return err
		}

		taken := make(map[string]bool, len(codes))
		for _, c := range codes {
			taken[c] = true
		}

		n := len(codes) + 1
		for taken[adhocCode(ay.Name, n)] {
			n++
		}

		var record int
		if err := tx.Model(&models.Release{}).Select("COALESCE(MAX(record_number), 0)").Scan(&record).Error; err != nil {
			return err
		}

		out = models.Release{
			RecordNumber:     record + 1,
			AcademicYearID:   ay.ID,
			ReleaseCode:      adhocCode(ay.Name, n),
			ReleaseType:      models.ReleaseAdhoc,
			Name:             in.Name,
			Status:           models.ReleasePlanned,
			GoLiveDate:       goLive,
			FreezeCutOffDate: cutOff,
			Notes:            in.Notes,
		}

		if err := tx.Create(&out).Error; err != nil {
			return fmt.Errorf("failed to create release: %w", err)
		}

		out.AcademicYear = ay

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func adhocCode(year string, n int) string {
	return fmt.Sprintf("%s-AH-%02d", year, n)
}

// Assignable returns the open releases a BCR can be scheduled for, soonest first.
func Assignable(db *gorm.DB) ([]models.Release, error) {
	var out []models.Release

	err := db.Preload("AcademicYear").Where("status IN ?", Open).Order("go_live_date, release_code").Find(&out).Error

	return out, err
}

// Generate creates the baseline and fortnightly in-year releases of an academic year.
//
// The baseline goes live on the first day of the year. In-year releases go live
// every other Monday from the first Monday at least two weeks after the start,
// skipping breaks and dates that already have a release. With force set,
// previously generated releases are deleted first; ad hoc releases are kept.
func Generate(db *gorm.DB, yearID uint, force bool) ([]models.Release, error) {
	var created []models.Release

	err := db.Transaction(func(tx *gorm.DB) error {
		ay, err := academicyear.Get(tx, yearID)
		if err != nil {
			return err
		}

		start, end := calendarDay(ay.StartDate), calendarDay(ay.EndDate)

		if force {
			generated := []string{models.ReleaseBaseline, models.ReleaseInYear}

			err := unschedule(tx, tx.Model(&models.Release{}).Select("id").
				Where("academic_year_id = ? AND release_type IN ?", yearID, generated))
			if err != nil {
				return err
			}

			if err := tx.Where("academic_year_id = ? AND release_type IN ?", yearID,
				generated).Delete(&models.Release{}).Error; err != nil {
				return fmt.Errorf("failed to delete generated releases: %w", err)
			}
		}

		var existing []models.Release
		if err := tx.Where("academic_year_id = ?", yearID).Find(&existing).Error; err != nil {
			return err
		}

		taken := make(map[string]bool, len(existing))
		hasBaseline := false
		inYear := 0

		for _, r := range existing {
			taken[calendarDay(r.GoLiveDate).Format(time.DateOnly)] = true
			hasBaseline = hasBaseline || r.ReleaseType == models.ReleaseBaseline
			if r.ReleaseType == models.ReleaseInYear {
				inYear++
			}
		}

		var record int
		if err := tx.Model(&models.Release{}).Select("COALESCE(MAX(record_number), 0)").Scan(&record).Error; err != nil {
			return err
		}

		if !hasBaseline {
			record++
			cutOff := start.Add(-LeadTime)
			created = append(created, models.Release{
				RecordNumber:     record,
				AcademicYearID:   ay.ID,
				ReleaseCode:      ay.Name + "-001-BS",
				ReleaseType:      models.ReleaseBaseline,
				Name:             "AY " + ay.Name + " - Baseline",
				Status:           models.ReleasePlanned,
				GoLiveDate:       start,
				FreezeCutOffDate: &cutOff,
				Notes:            "Baseline release",
			})
			taken[start.Format(time.DateOnly)] = true
		}

		for goLive := FirstInYearDate(start); !goLive.After(end); goLive = goLive.AddDate(0, 0, 14) {
			if inBreak(ay.Breaks, goLive) || taken[goLive.Format(time.DateOnly)] {
				continue
			}

			inYear++
			record++
			cutOff := goLive.Add(-LeadTime)
			created = append(created, models.Release{
				RecordNumber:     record,
				AcademicYearID:   ay.ID,
				ReleaseCode:      fmt.Sprintf("%s-%03d-IY", ay.Name, inYear+1),
				ReleaseType:      models.ReleaseInYear,
				Name:             fmt.Sprintf("AY %s - Release Period %d", ay.Name, inYear),
				Status:           models.ReleasePlanned,
				GoLiveDate:       goLive,
				FreezeCutOffDate: &cutOff,
				Notes:            fmt.Sprintf("In-year release for period %d", inYear),
			})
		}

		if len(created) == 0 {
			return nil
		}

		return tx.Create(&created).Error
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// FirstInYearDate returns the first Monday on or after start plus the lead time.
// The result is a UTC midnight.
func FirstInYearDate(start time.Time) time.Time {
	d := calendarDay(start).Add(LeadTime)
	offset := (int(time.Monday) - int(d.Weekday()) + 7) % 7

	return d.AddDate(0, 0, offset)
}

// calendarDay returns t's UTC date at midnight. Dates are stored as UTC
// midnights but drivers may hand them back in the server's location.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()

	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func inBreak(breaks []models.AcademicBreak, d time.Time) bool {
	for _, b := range breaks {
		if !d.Before(calendarDay(b.StartDate)) && !d.After(calendarDay(b.EndDate)) {
			return true
		}
	}

	return false
}
