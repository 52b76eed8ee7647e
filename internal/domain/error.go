package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrJobAlreadyFinal = errors.New("job already finalized")
	ErrUnknownTool     = errors.New("unknown tool")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrDispatchFailed  = errors.New("job dispatch failed")
)

var (
	// Storage errors
	ErrInvalidExecContext = errors.New("invalid database execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)

// ErrLockHeld is returned when a distributed lock is owned by someone else.
var ErrLockHeld = errors.New("lock held by another owner")
