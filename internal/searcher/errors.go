package searcher

import "errors"

var (
	// ErrSubQueryFailed marks a single keyword sub-query that raised. It is
	// only surfaced when every sub-query fails.
	ErrSubQueryFailed = errors.New("sub-query failed")
	// ErrEmptyQuery is returned when the request carries no usable keywords
	ErrEmptyQuery = errors.New("no keywords provided")
	// ErrInvalidThreshold rejects a high-confidence override that would
	// overlap the possibly relevant tier
	ErrInvalidThreshold = errors.New("invalid high-confidence threshold")
	// ErrNoResults is returned when queries ran but nothing cleared the thresholds
	ErrNoResults = errors.New("no relevant learnings found")
)

// Status values of a Response
const (
	StatusSuccess   = "success"
	StatusNoResults = "no_results"
	StatusEmpty     = "empty"
	StatusError     = "error"
)
