package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an operation collides with existing state
	// (a run already active, a branch that already exists, a precondition not met).
	ErrConflict = errors.New("conflict")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrExternalTool is returned when an external tool (agent CLI, git) fails or is missing.
	ErrExternalTool = errors.New("external tool failure")
)
