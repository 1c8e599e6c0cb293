package domain

import "errors"

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	// ErrConflict means a conditional update matched no row because the record moved on.
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrStorage and ErrQueue classify intake failures so callers can tell
	// "not recorded" apart from "recorded but not queued".
	ErrStorage = errors.New("storage error")
	ErrQueue   = errors.New("queue error")
)
