package errors

import "errors"

// Sentinel errors for common error conditions
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates that a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates that input validation failed
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfig indicates that a configuration value is missing or out of range
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMaxHops indicates that the routing state machine exhausted its hop budget
	ErrMaxHops = errors.New("maximum routing hops exceeded")

	// ErrThreadNotFound indicates that no history exists for a thread identifier
	ErrThreadNotFound = errors.New("thread not found")

	// ErrSessionClosed indicates an operation on a closed session
	ErrSessionClosed = errors.New("session closed")

	// ErrNoProvider indicates that an agent has no LLM provider configured
	ErrNoProvider = errors.New("no LLM provider configured")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")
)
