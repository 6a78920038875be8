package release

import (
	"time"

	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
)

// Scheduled is a release with the BCRs scheduled for it.
type Scheduled struct {
	Release models.Release
	Bcrs    []models.Bcr
}

// Month holds the releases going live in one calendar month.
type Month struct {
	Start    time.Time
	Releases []Scheduled
}

// Diary returns the releases matching f grouped by go-live month, earliest first.
func Diary(db *gorm.DB, f Filter) ([]Month, error) {
	releases, err := List(db, f)
	if err != nil {
		return nil, err
	}

	if len(releases) == 0 {
		return nil, nil
	}

	ids := make([]uint64, len(releases))
	for i := range releases {
		ids[i] = releases[i].ID
	}

	var bcrs []models.Bcr
	if err := db.Where("release_id IN ?", ids).Order("record_number").Find(&bcrs).Error; err != nil {
		return nil, err
	}

	scheduled := make(map[uint64][]models.Bcr, len(bcrs))
	for _, b := range bcrs {
		scheduled[*b.ReleaseID] = append(scheduled[*b.ReleaseID], b)
	}

	var months []Month

	for _, r := range releases {
		d := calendarDay(r.GoLiveDate)
		start := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)

		if len(months) == 0 || !months[len(months)-1].Start.Equal(start) {
			months = append(months, Month{Start: start})
		}

		last := &months[len(months)-1]
		last.Releases = append(last.Releases, Scheduled{Release: r, Bcrs: scheduled[r.ID]})
	}

	return months, nil
}
