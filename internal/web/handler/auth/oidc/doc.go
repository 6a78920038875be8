// Package oidc provides handlers for the OpenID Connect login flow.
//
// Login stores a one-time state token in the session storage and redirects to
// the provider. Callback consumes the token, verifies the ID token, provisions
// the user with the configured default role and starts a session that keeps
// the raw ID token for the end-session redirect on logout.
//
//	GET /auth/oidc/login    - initiate OIDC login
//	GET /auth/oidc/callback - handle the provider callback
package oidc
