package repository

import "errors"

var (
	// ErrDuplicateDevice is returned when a device already holds an accepted record for the session.
	ErrDuplicateDevice = errors.New("device already recorded for session")
	// ErrSessionInactive is returned by conditional writes whose session is no longer active.
	ErrSessionInactive = errors.New("session is not active")
	// ErrEmailTaken is returned when an owner with the same email exists.
	ErrEmailTaken = errors.New("owner email already registered")
)
