package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrTooManyScenarios = errors.New("too many scenarios")
)
