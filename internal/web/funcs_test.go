package web

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMarkdownSanitises(t *testing.T) {
	out := string(Markdown("# Title\n\n<script>alert(1)</script>\n\n* one\n"))

	assert.Contains(t, out, "<h1")
	assert.Contains(t, out, "<li>one</li>")
	assert.NotContains(t, out, "<script>")
}

func TestFormatTime(t *testing.T) {
	d := time.Date(2025, 9, 1, 14, 30, 0, 0, time.UTC)
	f := formatTime(displayDate)

	assert.Equal(t, "1 September 2025", f(d))
	assert.Equal(t, "1 September 2025", f(&d))
	assert.Empty(t, f((*time.Time)(nil)))
	assert.Empty(t, f(time.Time{}))
	assert.Empty(t, f("nope"))
}

func TestTemplateFuncs(t *testing.T) {
	funcs := TemplateFuncs()

	can := funcs["can"].(func(any, string) bool)
	assert.True(t, can([]string{"bcr.read"}, "bcr.read"))
	assert.False(t, can(nil, "bcr.read"))

	comma := funcs["comma"].(func(int64) string)
	assert.Equal(t, "1,234,567", comma(1234567))

	assert.Equal(t, []string{"a", "b"}, splitLines(" a \n\n b\n"))
	assert.True(t, strings.HasSuffix(ago(time.Now().Add(-2*time.Hour)), "ago"))
}
