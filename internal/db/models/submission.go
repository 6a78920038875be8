package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Submission statuses.
const (
	SubmissionPending          = "Pending"
	SubmissionApproved         = "Approved"
	SubmissionRejected         = "Rejected"
	SubmissionPaused           = "Paused"
	SubmissionClosed           = "Closed"
	SubmissionMoreInfoRequired = "More Info Required"
)

// Submission sources.
const (
	SourceInternal = "Internal"
	SourceExternal = "External"
	SourceOther    = "Other"
)

// Submission is a change request raised through the public form, awaiting review.
type Submission struct {
	ID                    string `gorm:"primaryKey;type:varchar(36)"`
	SubmissionCode        string `gorm:"size:20;uniqueIndex;not null"`
	RecordNumber          int    `gorm:"not null"`
	FullName              string `gorm:"size:60;not null"`
	EmailAddress          string `gorm:"size:80;not null"`
	SubmissionSource      string `gorm:"size:20;not null"`
	Organisation          string `gorm:"size:255"`
	BriefDescription      string `gorm:"size:500;not null"`
	Justification         string `gorm:"type:text;not null"`
	UrgencyLevel          string `gorm:"size:20;not null"`
	ImpactAreas           string `gorm:"type:text"` // comma separated impact-area values
	TechnicalDependencies string `gorm:"type:text"`
	RelatedDocuments      string `gorm:"type:text"`
	AdditionalNotes       string `gorm:"type:text"`
	Declaration           bool
	Status                string `gorm:"size:30;not null;index"`
	ReviewOutcome         string `gorm:"size:30"`
	ReviewComments        string `gorm:"type:text"`
	ReviewedAt            *time.Time
	ReviewedByID          *uint64
	ReviewedBy            *User `gorm:"foreignKey:ReviewedByID;constraint:OnDelete:SET NULL"`
	SubmittedByID         *uint64
	CreatedAt             time.Time
	UpdatedAt             time.Time
	DeletedAt             gorm.DeletedAt `gorm:"index"`
}

// BeforeCreate assigns a UUID to new submissions.
func (s *Submission) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	return nil
}
