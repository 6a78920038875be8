package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
)

// Activity actions written to the workflow history.
const (
	ActionCreated        = "BCR created"
	ActionPhaseUpdated   = "Phase updated"
	ActionPhaseCompleted = "Phase completed"
	ActionPhaseStarted   = "Phase started"
	ActionAllCompleted   = "Workflow completed"
	ActionClosed         = "BCR closed"
	ActionRejected       = "BCR rejected"
	ActionAssigned       = "BCR assigned"
	ActionRelease        = "Release assigned"
)

const whereIDIs = "id = ?"

// CardTracker mirrors BCRs onto an external board.
type CardTracker interface {
	CreateCard(ctx context.Context, name, description string) (string, error)
	AddComment(ctx context.Context, cardID, text string) error
}

// Service performs workflow transitions.
type Service struct {
	db    *gorm.DB
	cards CardTracker
	now   func() time.Time
}

// NewService returns a Service. cards may be nil when no card integration is enabled.
func NewService(db *gorm.DB, cards CardTracker) *Service {
	return &Service{db: db, cards: cards, now: time.Now}
}

// UpdateRequest asks for a phase to be marked in progress or completed.
type UpdateRequest struct {
	BcrID     string
	Phase     int
	Completed bool
	Comment   string
	UserID    *uint64
}

// NewBcr holds the fields of a BCR to create.
type NewBcr struct {
	Title            string
	Description      string
	Impact           string
	Priority         string
	UrgencyLevel     string
	ImpactAreaValues []string
	RequestedByID    *uint64
	SubmissionID     *string
	TargetDate       *time.Time
	Comment          string
	UserID           *uint64
}

// UpdatePhase applies req in a single transaction.
//
// Completing a phase moves the BCR into the next configured phase, or to
// Completed after the last one, and records both steps in the history.
func (s *Service) UpdatePhase(ctx context.Context, req UpdateRequest) (*models.Bcr, error) {
	var bcr models.Bcr

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadBcr(tx, req.BcrID, &bcr); err != nil {
			return err
		}

		if IsTerminal(bcr.Status) {
			return ErrTerminal
		}

		if err := requireConfig(tx, models.ConfigTypePhase, strconv.Itoa(req.Phase), ErrUnknownPhase); err != nil {
			return err
		}

		status := StatusValue(req.Phase, req.Completed)
		if err := requireConfig(tx, models.ConfigTypeStatus, status, ErrUnknownStatus); err != nil {
			return err
		}

		now := s.now()
		action := ActionPhaseUpdated
		if req.Completed {
			action = ActionPhaseCompleted
		}

		bcr.Status = status
		activities := []models.WorkflowActivity{
			activity(&bcr, req.Phase, status, action, req.Comment, req.Completed, req.UserID),
		}

		if req.Completed {
			markMilestone(&bcr, req.Phase, now)

			next, err := nextPhase(tx, req.Phase)
			if err != nil {
				return err
			}

			if next > 0 {
				nextStatus := StatusValue(next, false)
				if err := requireConfig(tx, models.ConfigTypeStatus, nextStatus, ErrUnknownStatus); err != nil {
					return err
				}

				bcr.Status = nextStatus
				activities = append(activities,
					activity(&bcr, next, nextStatus, ActionPhaseStarted, "", false, req.UserID))
			} else {
				bcr.Status = models.BcrStatusCompleted
				activities = append(activities,
					activity(&bcr, req.Phase, bcr.Status, ActionAllCompleted, "All phases completed.", true, req.UserID))
			}
		}

		if err := tx.Omit(clause.Associations).Save(&bcr).Error; err != nil {
			return fmt.Errorf("failed to save bcr: %w", err)
		}

		return tx.Create(&activities).Error
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("bcr", bcr.BcrNumber).Str("status", bcr.Status).Msg("workflow updated")

	switch {
	case bcr.Status == StatusValue(TrelloPhase, false) && bcr.TrelloCardID == "":
		s.createCard(ctx, &bcr)
	case bcr.TrelloCardID != "" && s.cards != nil:
		if err := s.cards.AddComment(ctx, bcr.TrelloCardID, StatusLabel(bcr.Status)); err != nil {
			log.Warn().Err(err).Str("bcr", bcr.BcrNumber).Msg("failed to comment on trello card")
		}
	}

	return &bcr, nil
}

// Create adds a new BCR in its own transaction.
func (s *Service) Create(ctx context.Context, in NewBcr) (*models.Bcr, error) {
	var bcr *models.Bcr

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		bcr, err = s.CreateTx(tx, in)

		return err
	})

	return bcr, err
}

// CreateTx adds a new BCR within tx. The first phase is recorded as completed
// and the BCR starts in phase two.
func (s *Service) CreateTx(tx *gorm.DB, in NewBcr) (*models.Bcr, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, ErrTitleRequired
	}

	started := StatusValue(FirstPhase+1, false)
	if err := requireConfig(tx, models.ConfigTypeStatus, started, ErrUnknownStatus); err != nil {
		return nil, err
	}

	record, err := NextRecordNumber(tx, &models.Bcr{})
	if err != nil {
		return nil, err
	}

	now := s.now()

	priority := in.Priority
	if priority == "" {
		priority = PriorityFromUrgency(in.UrgencyLevel)
	}

	bcr := &models.Bcr{
		BcrNumber:     BcrNumber(now, record),
		RecordNumber:  record,
		Title:         in.Title,
		Description:   in.Description,
		Impact:        in.Impact,
		Status:        started,
		Priority:      priority,
		UrgencyLevel:  in.UrgencyLevel,
		RequestedByID: in.RequestedByID,
		SubmissionID:  in.SubmissionID,
		TargetDate:    in.TargetDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if len(in.ImpactAreaValues) > 0 {
		if err := tx.Where("type = ? AND value IN ?", models.ConfigTypeImpactArea, in.ImpactAreaValues).
			Order("display_order").Find(&bcr.ImpactedAreas).Error; err != nil {
			return nil, fmt.Errorf("failed to load impacted areas: %w", err)
		}
	}

	if err := tx.Create(bcr).Error; err != nil {
		return nil, fmt.Errorf("failed to create bcr: %w", err)
	}

	comment := in.Comment
	if comment == "" {
		comment = "BCR created."
	}

	activities := []models.WorkflowActivity{
		activity(bcr, FirstPhase, StatusValue(FirstPhase, true), ActionCreated, comment, true, in.UserID),
		activity(bcr, FirstPhase+1, started, ActionPhaseStarted, "", false, in.UserID),
	}
	if err := tx.Create(&activities).Error; err != nil {
		return nil, fmt.Errorf("failed to record bcr history: %w", err)
	}

	return bcr, nil
}

// Close marks the BCR as closed.
func (s *Service) Close(ctx context.Context, id string, userID *uint64, comment string) (*models.Bcr, error) {
	return s.terminate(ctx, id, models.BcrStatusClosed, ActionClosed, userID, comment)
}

// Reject marks the BCR as rejected.
func (s *Service) Reject(ctx context.Context, id string, userID *uint64, comment string) (*models.Bcr, error) {
	return s.terminate(ctx, id, models.BcrStatusRejected, ActionRejected, userID, comment)
}

func (s *Service) terminate(ctx context.Context, id, status, action string, userID *uint64, comment string) (*models.Bcr, error) {
	var bcr models.Bcr

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadBcr(tx, id, &bcr); err != nil {
			return err
		}

		if IsTerminal(bcr.Status) {
			return ErrTerminal
		}

		phase := CurrentPhase(bcr.Status)
		bcr.Status = status

		if err := tx.Model(&bcr).Update("status", status).Error; err != nil {
			return fmt.Errorf("failed to update bcr status: %w", err)
		}

		a := activity(&bcr, phase, status, action, comment, true, userID)

		return tx.Create(&a).Error
	})
	if err != nil {
		return nil, err
	}

	return &bcr, nil
}

// Assign sets or clears the assignee. The first assignment stops the assignment SLA clock.
func (s *Service) Assign(ctx context.Context, id string, assigneeID, userID *uint64) (*models.Bcr, error) {
	var bcr models.Bcr

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadBcr(tx, id, &bcr); err != nil {
			return err
		}

		updates := map[string]any{"assigned_to_id": assigneeID}
		if assigneeID != nil && bcr.AssignedAt == nil {
			now := s.now()
			updates["assigned_at"] = now
			bcr.AssignedAt = &now
		}

		bcr.AssignedToID = assigneeID

		if err := tx.Model(&bcr).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to assign bcr: %w", err)
		}

		comment := "Assignee removed."
		if assigneeID != nil {
			comment = fmt.Sprintf("Assigned to user %d.", *assigneeID)
		}

		phase := CurrentPhase(bcr.Status)
		a := activity(&bcr, phase, bcr.Status, ActionAssigned, comment, false, userID)

		return tx.Create(&a).Error
	})
	if err != nil {
		return nil, err
	}

	return &bcr, nil
}

// AssignRelease schedules the BCR for a release, or unschedules it when
// releaseID is nil. Cancelled and deployed releases cannot take new BCRs.
func (s *Service) AssignRelease(ctx context.Context, id string, releaseID *uint64, comment string, userID *uint64) (
	*models.Bcr, error,
) {
	var bcr models.Bcr

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadBcr(tx, id, &bcr); err != nil {
			return err
		}

		if IsTerminal(bcr.Status) {
			return ErrTerminal
		}

		text := "Removed from release."

		var r *models.Release

		if releaseID != nil {
			r = &models.Release{}

			err := tx.Where(whereIDIs, *releaseID).
				Where("status IN ?", []string{models.ReleasePlanned, models.ReleaseInProgress}).First(r).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReleaseNotFound
			}
			if err != nil {
				return err
			}

			text = fmt.Sprintf("Scheduled for release %s going live %s.", r.ReleaseCode, r.GoLiveDate.UTC().Format(time.DateOnly))
		}

		if err := tx.Model(&bcr).Update("release_id", releaseID).Error; err != nil {
			return fmt.Errorf("failed to assign release: %w", err)
		}

		bcr.ReleaseID, bcr.Release = releaseID, r

		if comment = strings.TrimSpace(comment); comment != "" {
			text += " " + comment
		}

		a := activity(&bcr, CurrentPhase(bcr.Status), bcr.Status, ActionRelease, text, false, userID)

		return tx.Create(&a).Error
	})
	if err != nil {
		return nil, err
	}

	return &bcr, nil
}

// AddNote appends a dated, attributed note to the BCR's free-text notes.
func (s *Service) AddNote(ctx context.Context, id, author, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bcr models.Bcr
		if err := loadBcr(tx, id, &bcr); err != nil {
			return err
		}

		entry := fmt.Sprintf("[%s] %s: %s", s.now().Format("2006-01-02 15:04"), author, text)

		notes := entry
		if bcr.Notes != "" {
			notes = bcr.Notes + "\n" + entry
		}

		return tx.Model(&bcr).Update("notes", notes).Error
	})
}

// History returns the workflow activity of a BCR, oldest first.
func (s *Service) History(ctx context.Context, id string) ([]models.WorkflowActivity, error) {
	var out []models.WorkflowActivity

	err := s.db.WithContext(ctx).Preload("User").
		Where("bcr_id = ?", id).Order("created_at, id").Find(&out).Error

	return out, err
}

func (s *Service) createCard(ctx context.Context, bcr *models.Bcr) {
	if s.cards == nil || bcr.TrelloCardID != "" {
		return
	}

	cardID, err := s.cards.CreateCard(ctx, bcr.BcrNumber+": "+bcr.Title, bcr.Description)
	if err != nil {
		log.Warn().Err(err).Str("bcr", bcr.BcrNumber).Msg("failed to create trello card")
		return
	}

	if err := s.db.WithContext(ctx).Model(&models.Bcr{}).Where(whereIDIs, bcr.ID).
		Update("trello_card_id", cardID).Error; err != nil {
		log.Error().Err(err).Str("bcr", bcr.BcrNumber).Msg("failed to store trello card id")
		return
	}

	bcr.TrelloCardID = cardID
}

// PriorityFromUrgency maps a submission urgency level to a BCR priority.
func PriorityFromUrgency(urgency string) string {
	switch strings.ToLower(urgency) {
	case models.PriorityLow:
		return models.PriorityLow
	case models.PriorityHigh:
		return models.PriorityHigh
	case models.PriorityCritical:
		return models.PriorityCritical
	default:
		return models.PriorityMedium
	}
}

func loadBcr(tx *gorm.DB, id string, bcr *models.Bcr) error {
	err := tx.Where(whereIDIs, id).First(bcr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrBcrNotFound
	}

	return err
}

func requireConfig(tx *gorm.DB, kind, value string, notFound error) error {
	var count int64
	if err := tx.Model(&models.BcrConfig{}).Where("type = ? AND value = ?", kind, value).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check workflow config: %w", err)
	}

	if count == 0 {
		return fmt.Errorf("%w: %s", notFound, value)
	}

	return nil
}

// nextPhase returns the lowest configured phase after current, or 0.
func nextPhase(tx *gorm.DB, current int) (int, error) {
	var values []string
	if err := tx.Model(&models.BcrConfig{}).Where("type = ?", models.ConfigTypePhase).
		Pluck("value", &values).Error; err != nil {
		return 0, fmt.Errorf("failed to load phases: %w", err)
	}

	next := 0

	for _, v := range values {
		n, err := strconv.Atoi(v)
		if err != nil || n <= current {
			continue
		}

		if next == 0 || n < next {
			next = n
		}
	}

	return next, nil
}

func markMilestone(bcr *models.Bcr, phase int, now time.Time) {
	switch phase {
	case DecisionPhase:
		if bcr.DecidedAt == nil {
			bcr.DecidedAt = &now
		}
	case ImplementationPhase:
		if bcr.ImplementationDate == nil {
			bcr.ImplementationDate = &now
		}
	}
}

func activity(bcr *models.Bcr, phase int, status, action, comment string, completed bool, userID *uint64) models.WorkflowActivity {
	return models.WorkflowActivity{
		BcrID:     bcr.ID,
		Phase:     phase,
		Status:    status,
		Action:    action,
		Comment:   comment,
		Completed: completed,
		UserID:    userID,
	}
}
