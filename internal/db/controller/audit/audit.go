// Package audit records and lists audit log entries.
package audit

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
)

// Entry describes an audited action.
type Entry struct {
	UserID       *uint64
	Username     string
	Action       string
	ResourceType string
	ResourceID   string
	Details      any
}

// Record stores an entry. Failures are logged and do not fail the caller.
func Record(db *gorm.DB, e Entry) {
	row := models.AuditLog{
		UserID:       e.UserID,
		Username:     e.Username,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
	}

	if e.Details != nil {
		data, err := json.Marshal(e.Details)
		if err != nil {
			log.Warn().Err(err).Str("action", e.Action).Msg("failed to encode audit details")
		} else {
			row.Details = data
		}
	}

	if row.Username == "" {
		row.Username = "system"
	}

	if err := db.Create(&row).Error; err != nil {
		log.Error().Err(err).Str("action", e.Action).Msg("failed to write audit log")
	}
}

// Filter narrows List results.
type Filter struct {
	Username     string
	Action       string
	ResourceType string
	From         time.Time
	To           time.Time
	Page         int
	PageSize     int
}

// List returns one page of audit entries, newest first.
func List(db *gorm.DB, f Filter) ([]models.AuditLog, int64, error) {
	q := db.Model(&models.AuditLog{})

	if f.Username != "" {
		q = q.Where("LOWER(username) LIKE ?", "%"+strings.ToLower(f.Username)+"%")
	}

	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}

	if f.ResourceType != "" {
		q = q.Where("resource_type = ?", f.ResourceType)
	}

	if !f.From.IsZero() {
		q = q.Where("created_at >= ?", f.From)
	}

	if !f.To.IsZero() {
		q = q.Where("created_at < ?", f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, size := max(f.Page, 1), f.PageSize
	if size < 1 || size > 100 {
		size = 50
	}

	var out []models.AuditLog
	err := q.Order("created_at DESC, id DESC").Limit(size).Offset((page - 1) * size).Find(&out).Error

	return out, total, err
}

// Actions returns the distinct actions present in the log.
func Actions(db *gorm.DB) ([]string, error) {
	var out []string
	err := db.Model(&models.AuditLog{}).Distinct("action").Order("action").Pluck("action", &out).Error

	return out, err
}
