package workflow

import (
	"time"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
)

// SLAState is the RAG state of one SLA clock.
type SLAState string

// SLA states.
const (
	SLAGreen      SLAState = "green"
	SLAAmber      SLAState = "amber"
	SLARed        SLAState = "red"
	SLAComplete   SLAState = "complete"
	SLANotStarted SLAState = "not_started"
)

const day = 24 * time.Hour

// Window is the green and amber limit of one clock, in days.
type Window struct {
	GreenDays int `form:"green_days" json:"greenDays" validate:"min=1,ltefield=AmberDays"`
	AmberDays int `form:"amber_days" json:"amberDays" validate:"min=1"`
}

// Thresholds holds the limits for the three SLA clocks.
type Thresholds struct {
	Assignment     Window `json:"assignment"`
	Decision       Window `json:"decision"`
	Implementation Window `json:"implementation"`
}

// DefaultThresholds are used until an administrator saves different ones.
var DefaultThresholds = Thresholds{
	Assignment:     Window{GreenDays: 2, AmberDays: 3},
	Decision:       Window{GreenDays: 5, AmberDays: 7},
	Implementation: Window{GreenDays: 14, AmberDays: 21},
}

// Clock is the evaluated state of one SLA.
type Clock struct {
	State   SLAState
	Since   *time.Time
	Elapsed time.Duration
}

// Days returns the whole days elapsed on the clock.
func (c Clock) Days() int {
	return int(c.Elapsed / day)
}

// Tag returns the GOV.UK tag colour for the clock.
func (c Clock) Tag() string {
	switch c.State {
	case SLAGreen, SLAComplete:
		return "green"
	case SLAAmber:
		return "yellow"
	case SLARed:
		return "red"
	default:
		return "grey"
	}
}

// SLA groups the clocks of a BCR.
type SLA struct {
	Assignment     Clock
	Decision       Clock
	Implementation Clock
}

// EvaluateSLA computes the SLA clocks of b at now.
//
// Assignment runs from creation until someone is assigned. Decision runs from
// assignment until the governance phase completes. Implementation runs from the
// decision until the implementation phase completes. Closed and rejected BCRs
// stop every running clock.
func EvaluateSLA(b *models.Bcr, now time.Time, th Thresholds) SLA {
	stopped := IsTerminal(b.Status)

	var out SLA

	created := b.CreatedAt
	out.Assignment = evaluate(&created, b.AssignedAt, now, th.Assignment, stopped)
	out.Decision = evaluate(b.AssignedAt, b.DecidedAt, now, th.Decision, stopped)
	out.Implementation = evaluate(b.DecidedAt, b.ImplementationDate, now, th.Implementation, stopped)

	return out
}

func evaluate(start, end *time.Time, now time.Time, w Window, stopped bool) Clock {
	if start == nil || start.IsZero() {
		return Clock{State: SLANotStarted}
	}

	if end != nil {
		return Clock{State: SLAComplete, Since: start, Elapsed: end.Sub(*start)}
	}

	if stopped {
		return Clock{State: SLAComplete, Since: start}
	}

	elapsed := now.Sub(*start)

	c := Clock{Since: start, Elapsed: elapsed}

	switch {
	case elapsed <= time.Duration(w.GreenDays)*day:
		c.State = SLAGreen
	case elapsed <= time.Duration(w.AmberDays)*day:
		c.State = SLAAmber
	default:
		c.State = SLARed
	}

	return c
}
