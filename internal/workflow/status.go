package workflow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
)

const (
	statusPrefix     = "phase_"
	suffixInProgress = "_in_progress"
	suffixCompleted  = "_completed"
)

// Status types stored on status BcrConfig rows.
const (
	StatusTypeInProgress = "in_progress"
	StatusTypeCompleted  = "completed"
)

// StatusValue returns the status string for a phase.
func StatusValue(phase int, completed bool) string {
	if completed {
		return fmt.Sprintf("%s%d%s", statusPrefix, phase, suffixCompleted)
	}

	return fmt.Sprintf("%s%d%s", statusPrefix, phase, suffixInProgress)
}

// ParseStatus splits a phase status into its phase number and completion flag.
// Only the exact form StatusValue produces is accepted.
func ParseStatus(s string) (phase int, completed bool, ok bool) {
	rest, found := strings.CutPrefix(s, statusPrefix)
	if !found {
		return 0, false, false
	}

	var num string

	switch {
	case strings.HasSuffix(rest, suffixCompleted):
		num, completed = strings.TrimSuffix(rest, suffixCompleted), true
	case strings.HasSuffix(rest, suffixInProgress):
		num = strings.TrimSuffix(rest, suffixInProgress)
	default:
		return 0, false, false
	}

	phase, err := strconv.Atoi(num)
	if err != nil || phase < FirstPhase || StatusValue(phase, completed) != s {
		return 0, false, false
	}

	return phase, completed, true
}

// CurrentPhase returns the phase a BCR with the given status is in.
// Completed BCRs report the final phase; closed, rejected and unknown statuses report 0.
func CurrentPhase(status string) int {
	if status == models.BcrStatusCompleted {
		return FinalPhase
	}

	phase, _, ok := ParseStatus(status)
	if !ok {
		return 0
	}

	return phase
}

// IsTerminal reports whether no further phase updates are accepted.
func IsTerminal(status string) bool {
	return status == models.BcrStatusClosed || status == models.BcrStatusRejected
}

// StatusLabel renders a status for people, e.g. "Phase 4: BCR Reviewed".
func StatusLabel(status string) string {
	phase, completed, ok := ParseStatus(status)
	if !ok {
		return status
	}

	p, known := PhaseByNumber(phase)
	if !known {
		return status
	}

	if completed {
		return fmt.Sprintf("Phase %d: %s", phase, p.CompletedLabel)
	}

	return fmt.Sprintf("Phase %d: %s", phase, p.Name)
}

// StatusTag returns the GOV.UK tag colour for a status.
func StatusTag(status string) string {
	switch status {
	case models.BcrStatusCompleted:
		return "green"
	case models.BcrStatusClosed, models.BcrStatusRejected:
		return "red"
	}

	_, completed, ok := ParseStatus(status)

	switch {
	case !ok:
		return "grey"
	case completed:
		return "green"
	default:
		return "light-blue"
	}
}
