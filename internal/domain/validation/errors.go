package validation

import "errors"

// Sentinel kinds for validation configuration errors.
var (
	ErrUnknownStrictness = errors.New("unknown strictness")
)
