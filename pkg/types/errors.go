package types

import "errors"

// Domain errors for type validation
var (
	// Match errors
	ErrEmptyPath         = errors.New("path cannot be empty")
	ErrNoLineMatches     = errors.New("file match must contain at least one line match")
	ErrInvalidLineNumber = errors.New("line number must be >= 1")
	ErrInvalidRange      = errors.New("range end must not be before start")
)
