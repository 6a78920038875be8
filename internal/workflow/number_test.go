package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBcrNumber(t *testing.T) {
	tests := []struct {
		name   string
		at     time.Time
		record int
		want   string
	}{
		{"autumn term", time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC), 1, "BCR-25/26-001"},
		{"summer term", time.Date(2026, time.August, 31, 23, 0, 0, 0, time.UTC), 42, "BCR-25/26-042"},
		{"century", time.Date(2099, time.October, 1, 0, 0, 0, 0, time.UTC), 1234, "BCR-99/00-1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BcrNumber(tt.at, tt.record))
		})
	}
}

func TestSubmissionCode(t *testing.T) {
	assert.Equal(t, "SUB-24/25-007", SubmissionCode(time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC), 7))
}
