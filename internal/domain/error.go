package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidTransition  = errors.New("invalid stage transition")
	ErrAlreadyPending     = errors.New("a catch-up task is already pending")
	ErrLockNotAcquired    = errors.New("lock is held by another run")
	ErrReadDatabaseRow    = errors.New("error reading database row")
	ErrInvalidExecContext = errors.New("invalid database execution context")
)
