package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrOverdueSweepDisabled = errors.New("stored overdue sweep is disabled")
	ErrInvalidSnapshot      = errors.New("invalid snapshot")
)
