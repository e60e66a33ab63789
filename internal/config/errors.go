package config

import "errors"

// Sentinel errors for configuration loading.
var (
	// ErrInvalidConfig marks a value the engine cannot start with.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig marks a failure reading the file or environment layers.
	ErrLoadConfig = errors.New("load config failed")
)
