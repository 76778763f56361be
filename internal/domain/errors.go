package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotCompleted      = errors.New("job is not completed")
	ErrConflict          = errors.New("conflict")
	ErrInputUnavailable  = errors.New("input image unavailable")
	ErrAlreadyTerminated = errors.New("job already in a terminal state")
)
