package optimizer

import "errors"

// Sentinel kinds for optimizer failures. They never escape Execute or the
// catalog calls; they appear in logs and result messages.
var (
	ErrMissingAlgorithm  = errors.New("algorithm id is required")
	ErrInvalidScope      = errors.New("invalid scope")
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrInactiveAlgorithm = errors.New("algorithm is inactive")
	ErrUnexpectedStatus  = errors.New("unexpected status")
	ErrDecode            = errors.New("undecodable response")
)
