package models

import "time"

// Academic year statuses.
const (
	YearFuture   = "Future"
	YearNext     = "Next"
	YearCurrent  = "Current"
	YearPast     = "Past"
	YearArchived = "Archived"
)

// AcademicYear runs from 1 September to 31 August.
type AcademicYear struct {
	ID        uint            `gorm:"primaryKey"`
	StartDate time.Time       `gorm:"not null;uniqueIndex"`
	EndDate   time.Time       `gorm:"not null"`
	Name      string          `gorm:"size:10;not null"` // 25/26
	Code      string          `gorm:"size:10;not null"` // AY25/26
	FullName  string          `gorm:"size:20;not null"` // 2025/2026
	Status    string          `gorm:"size:20;not null;index"`
	Breaks    []AcademicBreak `gorm:"foreignKey:AcademicYearID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AcademicBreak is a holiday during which no releases are scheduled.
type AcademicBreak struct {
	ID             uint      `gorm:"primaryKey"`
	AcademicYearID uint      `gorm:"not null;index"`
	Name           string    `gorm:"size:100;not null"`
	StartDate      time.Time `gorm:"not null"`
	EndDate        time.Time `gorm:"not null"`
}

// Release types.
const (
	ReleaseBaseline = "AcademicYearBaseline"
	ReleaseInYear   = "InYearPeriod"
	ReleaseAdhoc    = "Adhoc"
)

// Release statuses.
const (
	ReleasePlanned    = "Planned"
	ReleaseInProgress = "InProgress"
	ReleaseDeployed   = "Deployed"
	ReleaseCancelled  = "Cancelled"
)

// Release is a scheduled reference data release within an academic year.
type Release struct {
	ID               uint64        `gorm:"primaryKey"`
	RecordNumber     int           `gorm:"not null"`
	AcademicYearID   uint          `gorm:"not null;index"`
	AcademicYear     *AcademicYear `gorm:"foreignKey:AcademicYearID;constraint:OnDelete:CASCADE"`
	ReleaseCode      string        `gorm:"size:30;not null;uniqueIndex"`
	ReleaseType      string        `gorm:"size:30;not null"`
	Name             string        `gorm:"size:255;not null"`
	Status           string        `gorm:"size:20;not null;default:'Planned'"`
	GoLiveDate       time.Time     `gorm:"not null;index"`
	FreezeCutOffDate *time.Time
	Notes            string `gorm:"type:text"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TypeLabel is the short name of the release type.
func (r Release) TypeLabel() string {
	switch r.ReleaseType {
	case ReleaseBaseline:
		return "Baseline"
	case ReleaseInYear:
		return "In-year"
	case ReleaseAdhoc:
		return "Ad hoc"
	default:
		return r.ReleaseType
	}
}

// TypeTag is the tag colour of the release type.
func (r Release) TypeTag() string {
	switch r.ReleaseType {
	case ReleaseBaseline:
		return "blue"
	case ReleaseInYear:
		return "green"
	case ReleaseAdhoc:
		return "orange"
	default:
		return "grey"
	}
}
