package daemon

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/db/controller/academicyear"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/audit"
	"github.com/dfe-rrdm/rrdm/internal/db/controller/release"
)

// DefaultStatusUpdateInterval is used when the configured interval is not positive.
const DefaultStatusUpdateInterval = time.Hour

// StatusUpdater keeps academic year statuses in line with the calendar and
// generates the releases of a year when it becomes current or next.
type StatusUpdater struct {
	db       *gorm.DB
	interval time.Duration
	now      func() time.Time
}

// NewStatusUpdater returns an updater running every interval.
func NewStatusUpdater(db *gorm.DB, interval time.Duration) *StatusUpdater {
	if interval <= 0 {
		interval = DefaultStatusUpdateInterval
	}

	return &StatusUpdater{db: db, interval: interval, now: time.Now}
}

// Run updates once immediately and then on every tick until ctx is done.
// Update failures are logged and retried on the next tick.
func (u *StatusUpdater) Run(ctx context.Context) error {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	for {
		if _, err := u.Update(); err != nil {
			log.Error().Err(err).Msg("academic year status update failed")
		}

		select {
		case <-ctx.Done():
			log.Debug().Msg("academic year status updater stopped")

			return nil
		case <-ticker.C:
		}
	}
}

// Update recomputes the statuses once and returns the changes it made.
func (u *StatusUpdater) Update() ([]academicyear.Change, error) {
	changes, err := academicyear.UpdateStatuses(u.db, u.now())
	if err != nil {
		return nil, err
	}

	for _, c := range changes {
		yearID := strconv.FormatUint(uint64(c.Year.ID), 10)

		log.Info().Str("year", c.Year.Name).Str("from", c.OldStatus).Str("to", c.NewStatus).
			Msg("academic year status changed")

		audit.Record(u.db, audit.Entry{
			Action:       "update_academic_year_status",
			ResourceType: "academic_year",
			ResourceID:   yearID,
			Details:      map[string]string{"from": c.OldStatus, "to": c.NewStatus},
		})

		if !c.TriggersReleases() {
			continue
		}

		created, err := release.Generate(u.db, c.Year.ID, false)
		if err != nil {
			log.Error().Err(err).Str("year", c.Year.Name).Msg("failed to generate releases")

			continue
		}

		log.Info().Str("year", c.Year.Name).Int("releases", len(created)).Msg("releases generated")

		audit.Record(u.db, audit.Entry{
			Action:       "generate_releases",
			ResourceType: "academic_year",
			ResourceID:   yearID,
			Details:      map[string]int{"created": len(created)},
		})
	}

	return changes, nil
}
