package errors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidData       = errors.New("invalid data type")
	ErrEmptyTarget       = errors.New("empty target name")
	ErrTargetNotFound    = errors.New("remote target not found")
	ErrCircuitOpen       = errors.New("circuit breaker open; cooldown active")
	ErrUnsupportedAction = errors.New("unsupported action")
	ErrWorkspaceRequired = errors.New("workspace path is required")
	ErrNoPreviousSample  = errors.New("no previous snapshot available for diff")
)
