// Package navigation holds the page title, the active menu entry and the
// breadcrumb trail rendered by the base layout.
package navigation

// Placeholder is the URL of a breadcrumb that only groups pages, such as "Admin".
const Placeholder = "#"

// BreadcrumbItem represents a single breadcrumb.
type BreadcrumbItem struct {
	Title  string
	URL    string
	Active bool
}

// Linked reports whether the breadcrumb renders as a link.
func (b BreadcrumbItem) Linked() bool {
	return !b.Active && b.URL != "" && b.URL != Placeholder
}

// Context is the navigation state of one page.
type Context struct {
	ActiveSection string
	ActivePage    string
	Breadcrumbs   []BreadcrumbItem
	PageTitle     string
}

// NewContext creates a navigation context for a page in the given menu section.
func NewContext(pageTitle, activeSection, activePage string) *Context {
	return &Context{
		PageTitle:     pageTitle,
		ActiveSection: activeSection,
		ActivePage:    activePage,
		Breadcrumbs:   make([]BreadcrumbItem, 0),
	}
}

// AddBreadcrumb appends a breadcrumb and returns c for chaining.
func (c *Context) AddBreadcrumb(title, url string, active bool) *Context {
	c.Breadcrumbs = append(c.Breadcrumbs, BreadcrumbItem{
		Title:  title,
		URL:    url,
		Active: active,
	})

	return c
}

// Back returns the URL of the closest linked breadcrumb, or "".
func (c *Context) Back() string {
	for i := len(c.Breadcrumbs) - 1; i >= 0; i-- {
		if b := c.Breadcrumbs[i]; b.Linked() {
			return b.URL
		}
	}

	return ""
}

// IsActive reports whether section and page are the current ones.
func (c *Context) IsActive(section, page string) bool {
	return c.ActiveSection == section && c.ActivePage == page
}

// IsSectionActive reports whether section is the current menu section.
func (c *Context) IsSectionActive(section string) bool {
	return c.ActiveSection == section
}
