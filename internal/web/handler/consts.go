package handler

const (
	// BaseLayout is the default path for layout templates.
	BaseLayout = "layouts/base"

	// RootPath is the root path the route group.
	RootPath = "/"

	// RouterRootPath is the root of a route group.
	RouterRootPath = "/"

	// DashboardPath is the landing page after login.
	DashboardPath = "/dashboard"

	// DefaultPageSize for paginated lists.
	DefaultPageSize = 25

	// ErrNilACDFatalLogMsg is used if app or cfg or db var pointer is nil.
	ErrNilACDFatalLogMsg = "app, cfg or db is nil"

	// TemplateConfirmDelete is the shared delete confirmation page.
	TemplateConfirmDelete = "confirm-delete"
)
