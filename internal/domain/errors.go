package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidAssignment = errors.New("invalid pricing assignment")
	ErrRateLimited       = errors.New("pms: rate limited")
)
