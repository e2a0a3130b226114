package types

import "errors"

// Domain errors for type validation
var (
	ErrEmptyID         = errors.New("learning ID cannot be empty")
	ErrEmptyContent    = errors.New("content cannot be empty")
	ErrInvalidScope    = errors.New("scope must be 'global' or 'repo'")
	ErrMissingRepo     = errors.New("repo is required for repo-scoped learnings")
	ErrTooManyKeywords = errors.New("at most 8 keywords are allowed")
	ErrInvalidDistance = errors.New("distance must be between 0 and 1")
)
