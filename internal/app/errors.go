package service

import "errors"

// Sentinel errors returned by the Service.
var (
	// ErrReconcileInFlight is returned when another optimize or schedule
	// replacement is still writing to the live model.
	ErrReconcileInFlight = errors.New("reconciliation already in progress")
	// ErrInvalidSnapshot is returned for schedules the live model cannot hold.
	ErrInvalidSnapshot = errors.New("invalid schedule snapshot")
	// ErrHistoryDisabled is returned when no run history store is configured.
	ErrHistoryDisabled = errors.New("run history disabled")
)
