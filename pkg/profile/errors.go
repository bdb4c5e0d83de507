package profile

import "errors"

// Sentinel errors returned (optionally wrapped) by Profile operations.
// Callers should match them with errors.Is.
var (
	// ErrInvalidState is returned when the profile is read-only or has no name.
	ErrInvalidState = errors.New("invalid profile state")
	// ErrInvalidArgument is returned when a required argument is missing.
	ErrInvalidArgument = errors.New("invalid argument")
)
