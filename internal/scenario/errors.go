package scenario

import "errors"

// Sentinel errors for scenario loading.
var (
	ErrNoScenarios   = errors.New("no scenarios")
	ErrUnknownFormat = errors.New("unknown scenario format")
	ErrDecode        = errors.New("decode scenario")
)
