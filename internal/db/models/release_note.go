package models

import (
	"strings"
	"time"
)

// ReleaseNote documents a reference data release.
type ReleaseNote struct {
	ID          uint64    `gorm:"primaryKey"`
	Version     string    `gorm:"size:50;uniqueIndex;not null"`
	ReleaseDate time.Time `gorm:"not null;index"`
	Title       string    `gorm:"size:255;not null"`
	Description string    `gorm:"type:text"`
	// Features and BugFixes hold one entry per line.
	Features  string `gorm:"type:text"`
	BugFixes  string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FeatureList returns the non-empty feature lines.
func (r *ReleaseNote) FeatureList() []string {
	return splitLines(r.Features)
}

// BugFixList returns the non-empty bug fix lines.
func (r *ReleaseNote) BugFixList() []string {
	return splitLines(r.BugFixes)
}

func splitLines(s string) []string {
	var out []string

	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}

	return out
}
