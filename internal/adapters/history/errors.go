package history

import "errors"

// Sentinel kinds for run history errors.
var (
	ErrNotFound     = errors.New("run not found")
	ErrInvalidLimit = errors.New("invalid history limit")
	ErrInvalidRun   = errors.New("invalid run")
	ErrClosed       = errors.New("history store closed")
)
