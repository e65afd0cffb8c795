package scheduler

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("schedule conflict")
	ErrValidation = errors.New("validation failed")
)
