// Package sentinel holds the errors stores return. Services translate them
// into domain errors once, at the service boundary.
package sentinel

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("conflict")
	// ErrInvalidState marks a transition the current state forbids, such as
	// beginning a scan on an item that is already scanning.
	ErrInvalidState = errors.New("invalid state")
)
