package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewContext(t *testing.T) {
	ctx := NewContext("Change requests", "bcr", "list")

	assert.Equal(t, "Change requests", ctx.PageTitle)
	assert.Equal(t, "bcr", ctx.ActiveSection)
	assert.Equal(t, "list", ctx.ActivePage)
	assert.NotNil(t, ctx.Breadcrumbs)
	assert.Empty(t, ctx.Breadcrumbs)
	assert.Empty(t, ctx.Back())
}

func TestAddBreadcrumb(t *testing.T) {
	ctx := NewContext("BCR-2025-0001", "bcr", "show").
		AddBreadcrumb("Home", "/dashboard", false).
		AddBreadcrumb("Change requests", "/bcr", false).
		AddBreadcrumb("BCR-2025-0001", "/bcr/1", true)

	assert.Equal(t, []BreadcrumbItem{
		{Title: "Home", URL: "/dashboard"},
		{Title: "Change requests", URL: "/bcr"},
		{Title: "BCR-2025-0001", URL: "/bcr/1", Active: true},
	}, ctx.Breadcrumbs)
	assert.Equal(t, "/bcr", ctx.Back())
}

func TestBreadcrumbLinked(t *testing.T) {
	tests := []struct {
		name string
		item BreadcrumbItem
		want bool
	}{
		{"link", BreadcrumbItem{Title: "Home", URL: "/dashboard"}, true},
		{"active", BreadcrumbItem{Title: "Users", URL: "/admin/users", Active: true}, false},
		{"placeholder", BreadcrumbItem{Title: "Admin", URL: Placeholder}, false},
		{"empty", BreadcrumbItem{Title: "Edit"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.item.Linked())
		})
	}
}

func TestBackSkipsPlaceholders(t *testing.T) {
	ctx := NewContext("Roles", "admin", "role").
		AddBreadcrumb("Home", "/dashboard", false).
		AddBreadcrumb("Admin", Placeholder, false).
		AddBreadcrumb("Roles", "/admin/roles", true)

	assert.Equal(t, "/dashboard", ctx.Back())
}

func TestIsActive(t *testing.T) {
	ctx := NewContext("SLA settings", "settings", "sla")

	assert.True(t, ctx.IsActive("settings", "sla"))
	assert.False(t, ctx.IsActive("dashboard", "sla"))
	assert.False(t, ctx.IsActive("settings", "users"))
	assert.True(t, ctx.IsSectionActive("settings"))
	assert.False(t, ctx.IsSectionActive("admin"))
}
