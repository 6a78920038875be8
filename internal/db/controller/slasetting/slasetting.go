// Package slasetting stores the SLA thresholds administrators can change.
package slasetting

import (
	"errors"

	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/db/controller/setting"
	"github.com/dfe-rrdm/rrdm/internal/workflow"
)

// SettingKey is the settings row holding the thresholds.
const SettingKey = "sla_thresholds"

// Load returns the stored thresholds, or the defaults when none are saved.
func Load(db *gorm.DB) (workflow.Thresholds, error) {
	th := workflow.DefaultThresholds

	err := setting.LoadJSON(db, SettingKey, &th)
	if errors.Is(err, setting.ErrSettingNotFound) {
		return workflow.DefaultThresholds, nil
	}
	if err != nil {
		return workflow.DefaultThresholds, err
	}

	return th, nil
}

// Save stores the thresholds.
func Save(db *gorm.DB, th workflow.Thresholds) error {
	return setting.SaveJSON(db, SettingKey, th)
}
