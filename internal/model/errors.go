package model

import "errors"

var (
	// ErrNotFound is returned when a sync, data folder, or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrBadConfiguration is returned when a sync or table mapping is invalid.
	ErrBadConfiguration = errors.New("bad configuration")

	// ErrNotImplemented is returned for deliberately unimplemented behavior,
	// such as foreign key lookup column mappings.
	ErrNotImplemented = errors.New("not implemented")
)
