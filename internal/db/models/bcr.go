package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Bcr statuses outside the phase_{n}_* family.
const (
	BcrStatusCompleted = "Completed"
	BcrStatusClosed    = "Closed"
	BcrStatusRejected  = "Rejected"
)

// Bcr priorities.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Bcr is a Business Change Request moving through the workflow phases.
type Bcr struct {
	ID           string `gorm:"primaryKey;type:varchar(36)"`
	BcrNumber    string `gorm:"size:20;uniqueIndex;not null"`
	RecordNumber int    `gorm:"not null;index"`
	Title        string `gorm:"size:255;not null"`
	Description  string `gorm:"type:text"`
	Status       string `gorm:"size:50;not null;index"`
	Priority     string `gorm:"size:20;not null;default:'medium'"`
	Impact       string `gorm:"type:text"`
	UrgencyLevel string `gorm:"size:20"`

	RequestedByID *uint64  `gorm:"index"`
	RequestedBy   *User    `gorm:"foreignKey:RequestedByID;constraint:OnDelete:SET NULL"`
	AssignedToID  *uint64  `gorm:"index"`
	AssignedTo    *User    `gorm:"foreignKey:AssignedToID;constraint:OnDelete:SET NULL"`
	SubmissionID  *string  `gorm:"type:varchar(36);uniqueIndex"`
	ReleaseID     *uint64  `gorm:"index"`
	Release       *Release `gorm:"foreignKey:ReleaseID;constraint:OnDelete:SET NULL"`

	TargetDate         *time.Time
	ImplementationDate *time.Time
	// AssignedAt and DecidedAt drive the SLA clocks.
	AssignedAt *time.Time
	DecidedAt  *time.Time

	Notes        string `gorm:"type:text"`
	TrelloCardID string `gorm:"size:100"`

	ImpactedAreas []BcrConfig        `gorm:"many2many:bcr_impacted_areas;joinForeignKey:BcrID;joinReferences:ConfigID"`
	Activities    []WorkflowActivity `gorm:"foreignKey:BcrID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// BeforeCreate assigns a UUID to new BCRs.
func (b *Bcr) BeforeCreate(*gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	return nil
}

// WorkflowActivity is one entry of a BCR's workflow history.
type WorkflowActivity struct {
	ID        uint64 `gorm:"primaryKey"`
	BcrID     string `gorm:"type:varchar(36);not null;index"`
	Phase     int    `gorm:"not null"`
	Status    string `gorm:"size:50;not null"`
	Action    string `gorm:"size:100;not null"`
	Comment   string `gorm:"type:text"`
	Completed bool
	UserID    *uint64
	User      *User `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL"`
	CreatedAt time.Time
}

// TableName overrides the table name used by WorkflowActivity to `bcr_workflow_activities`.
func (WorkflowActivity) TableName() string {
	return "bcr_workflow_activities"
}
