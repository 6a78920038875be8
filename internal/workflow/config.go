package workflow

import (
	"strconv"
	"strings"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
)

// Urgency is a submission urgency level.
type Urgency struct {
	Name  string
	Order int
	Color string
}

// UrgencyLevels lists the urgency levels, least urgent first.
var UrgencyLevels = []Urgency{
	{"Low", 10, "blue"},
	{"Medium", 20, "yellow"},
	{"High", 30, "orange"},
	{"Critical", 40, "red"},
	{"Unknown", 50, "grey"},
}

// UrgencyTag returns the GOV.UK tag colour of an urgency level.
func UrgencyTag(level string) string {
	for _, u := range UrgencyLevels {
		if strings.EqualFold(u.Name, level) {
			return u.Color
		}
	}

	return "grey"
}

// ConfigRows returns the phase, status and urgency BcrConfig rows the workflow relies on.
func ConfigRows() []models.BcrConfig {
	rows := make([]models.BcrConfig, 0, len(Phases)*3+len(UrgencyLevels))

	for _, p := range Phases {
		n := p.Number
		rows = append(rows,
			models.BcrConfig{
				Type:         models.ConfigTypePhase,
				Name:         p.Name,
				Value:        strconv.Itoa(n),
				DisplayOrder: n,
				Description:  p.CompletedLabel,
			},
			models.BcrConfig{
				Type:         models.ConfigTypeStatus,
				Name:         p.Name,
				Value:        StatusValue(n, false),
				DisplayOrder: n * 10,
				Color:        "light-blue",
				PhaseValue:   &n,
				StatusType:   StatusTypeInProgress,
			},
			models.BcrConfig{
				Type:         models.ConfigTypeStatus,
				Name:         p.CompletedLabel,
				Value:        StatusValue(n, true),
				DisplayOrder: n*10 + 1,
				Color:        "green",
				PhaseValue:   &n,
				StatusType:   StatusTypeCompleted,
				Description:  p.Tracker,
			},
		)
	}

	for _, u := range UrgencyLevels {
		rows = append(rows, models.BcrConfig{
			Type:         models.ConfigTypeUrgencyLevel,
			Name:         u.Name,
			Value:        strings.ToLower(u.Name),
			DisplayOrder: u.Order,
			Color:        u.Color,
		})
	}

	return rows
}
