package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
)

func TestEvaluateSLA(t *testing.T) {
	now := time.Date(2025, time.October, 20, 12, 0, 0, 0, time.UTC)
	ago := func(days float64) *time.Time {
		v := now.Add(-time.Duration(days * float64(24*time.Hour)))
		return &v
	}

	tests := []struct {
		name           string
		bcr            models.Bcr
		assignment     SLAState
		decision       SLAState
		implementation SLAState
	}{
		{
			name:           "new and unassigned",
			bcr:            models.Bcr{CreatedAt: *ago(1), Status: "phase_2_in_progress"},
			assignment:     SLAGreen,
			decision:       SLANotStarted,
			implementation: SLANotStarted,
		},
		{
			name:           "unassigned for too long",
			bcr:            models.Bcr{CreatedAt: *ago(4), Status: "phase_2_in_progress"},
			assignment:     SLARed,
			decision:       SLANotStarted,
			implementation: SLANotStarted,
		},
		{
			name:           "assigned, decision amber",
			bcr:            models.Bcr{CreatedAt: *ago(9), AssignedAt: ago(6), Status: "phase_4_in_progress"},
			assignment:     SLAComplete,
			decision:       SLAAmber,
			implementation: SLANotStarted,
		},
		{
			name: "decided, implementation green",
			bcr: models.Bcr{
				CreatedAt: *ago(30), AssignedAt: ago(29), DecidedAt: ago(10), Status: "phase_7_in_progress",
			},
			assignment:     SLAComplete,
			decision:       SLAComplete,
			implementation: SLAGreen,
		},
		{
			name: "implemented",
			bcr: models.Bcr{
				CreatedAt: *ago(60), AssignedAt: ago(59), DecidedAt: ago(50), ImplementationDate: ago(1),
				Status: models.BcrStatusCompleted,
			},
			assignment:     SLAComplete,
			decision:       SLAComplete,
			implementation: SLAComplete,
		},
		{
			name:           "closed stops running clocks",
			bcr:            models.Bcr{CreatedAt: *ago(20), Status: models.BcrStatusClosed},
			assignment:     SLAComplete,
			decision:       SLANotStarted,
			implementation: SLANotStarted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateSLA(&tt.bcr, now, DefaultThresholds)
			assert.Equal(t, tt.assignment, got.Assignment.State, "assignment")
			assert.Equal(t, tt.decision, got.Decision.State, "decision")
			assert.Equal(t, tt.implementation, got.Implementation.State, "implementation")
		})
	}
}

func TestClock(t *testing.T) {
	c := Clock{State: SLAAmber, Elapsed: 50 * time.Hour}
	assert.Equal(t, 2, c.Days())
	assert.Equal(t, "yellow", c.Tag())
	assert.Equal(t, "grey", Clock{State: SLANotStarted}.Tag())
}
