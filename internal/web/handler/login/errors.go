// Package login provides HTTP handlers and helpers for user authentication.
package login

import "errors"

var (
	// ErrInvalidFormData is returned when the submitted login form cannot be parsed.
	ErrInvalidFormData = errors.New("invalid form data")

	// ErrNoAuthMethod is returned when neither local nor LDAP login is enabled.
	ErrNoAuthMethod = errors.New("no authentication method available")

	// ErrLocalAuthDisabled is returned when local authentication is disabled by configuration.
	ErrLocalAuthDisabled = errors.New("local authentication is disabled")

	// ErrLDAPAuthDisabled is returned when LDAP authentication is disabled or unavailable.
	ErrLDAPAuthDisabled = errors.New("ldap authentication is disabled")

	// ErrInvalidAuthMethod is returned when a requested authentication method is unknown.
	ErrInvalidAuthMethod = errors.New("invalid authentication method")

	// ErrInvalidCredentials is returned when the username or password is wrong.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrAccountDisabled is returned when the account has been deactivated.
	ErrAccountDisabled = errors.New("your account has been disabled")

	// ErrInternalServerError is returned for unexpected failures during login.
	ErrInternalServerError = errors.New("internal server error")
)
