// Package auth provides the session check run before every route.
//
// Requests without a valid session are redirected to the login page, or get
// a 401 on /api paths. Static assets, health, metrics, logout and the OIDC
// callback are public. A logged in user visiting the login page is sent to
// the dashboard.
//
// Usage:
//
//	app.Use(authmiddleware.Middleware)
package auth
