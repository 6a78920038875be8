package auth

import "errors"

// Sign in failures. The login page maps all of them to one generic message
// so that usernames cannot be probed.
var (
	ErrUserNotFound        = errors.New("auth: no such user")
	ErrInvalidPassword     = errors.New("auth: wrong password")
	ErrUserAccountDisabled = errors.New("auth: account deactivated")
	ErrMultipleUsersFound  = errors.New("auth: directory search matched more than one entry")
	ErrNoIDToken           = errors.New("auth: token response has no id_token")
)

// Account management failures.
var (
	ErrInvalidOldPassword    = errors.New("auth: current password does not match")
	ErrUserNameOrEmailExists = errors.New("auth: username or email already registered")
	ErrRoleNotFound          = errors.New("auth: role not found")
)
