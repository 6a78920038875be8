package web

import (
	"bytes"
	"html/template"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"

	"github.com/dfe-rrdm/rrdm/internal/db/models"
	"github.com/dfe-rrdm/rrdm/internal/workflow"
)

const (
	displayDate     = "2 January 2006"
	displayDateTime = "2 January 2006 15:04"
)

var markdownPolicy = bluemonday.UGCPolicy() //nolint:gochecknoglobals

// TemplateFuncs returns the helpers available in every template.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"iterate": func(count int) []int {
			result := make([]int, count)
			for i := range result {
				result[i] = i
			}

			return result
		},
		"add": func(a, b int) int { return a + b },
		"sub": func(a, b int) int { return a - b },

		"date":      formatTime(displayDate),
		"datetime":  formatTime(displayDateTime),
		"inputDate": formatTime("2006-01-02"),
		"ago":       ago,

		"comma":  func(n int64) string { return humanize.Comma(n) },
		"pounds": models.FormatPence,

		"statusLabel":  workflow.StatusLabel,
		"statusTag":    workflow.StatusTag,
		"currentPhase": workflow.CurrentPhase,
		"urgencyTag":   workflow.UrgencyTag,

		"markdown": Markdown,
		"lines":    splitLines,
		"join":     strings.Join,
		"has":      func(list []string, v string) bool { return slices.Contains(list, v) },
		"can": func(perms any, perm string) bool {
			list, ok := perms.([]string)

			return ok && slices.Contains(list, perm)
		},
		"isID": func(id uint64, p *uint64) bool { return p != nil && *p == id },
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}

			return *s
		},
	}
}

// formatTime accepts time.Time and *time.Time and renders "" for nil or zero values.
func formatTime(layout string) func(v any) string {
	return func(v any) string {
		switch t := v.(type) {
		case time.Time:
			if t.IsZero() {
				return ""
			}

			return t.Format(layout)
		case *time.Time:
			if t == nil || t.IsZero() {
				return ""
			}

			return t.Format(layout)
		default:
			return ""
		}
	}
}

func ago(v any) string {
	switch t := v.(type) {
	case time.Time:
		return humanize.Time(t)
	case *time.Time:
		if t == nil {
			return ""
		}

		return humanize.Time(*t)
	default:
		return ""
	}
}

// Markdown renders src as sanitised HTML.
func Markdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(src), &buf); err != nil {
		log.Warn().Err(err).Msg("markdown conversion failed")

		return template.HTML(template.HTMLEscapeString(src)) //nolint:gosec // escaped
	}

	return template.HTML(markdownPolicy.SanitizeBytes(buf.Bytes())) //nolint:gosec // sanitised
}

func splitLines(s string) []string {
	var out []string

	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}

	return out
}
