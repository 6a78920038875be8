package workflow

import "errors"

var (
	// ErrBcrNotFound is returned when the BCR does not exist.
	ErrBcrNotFound = errors.New("bcr not found")
	// ErrUnknownPhase is returned when no phase config exists for the requested phase.
	ErrUnknownPhase = errors.New("unknown workflow phase")
	// ErrUnknownStatus is returned when no status config exists for the requested status.
	ErrUnknownStatus = errors.New("unknown workflow status")
	// ErrTerminal is returned when a closed or rejected BCR is updated.
	ErrTerminal = errors.New("bcr is closed")
	// ErrTitleRequired is returned when a BCR is created without a title.
	ErrTitleRequired = errors.New("bcr title is required")
	// ErrReleaseNotFound is returned when a BCR is scheduled for a missing or closed release.
	ErrReleaseNotFound = errors.New("release not found or no longer open")
)
