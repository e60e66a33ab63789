package reconcile

import "errors"

// Sentinel kinds for reconciliation failures.
var (
	ErrNoModel        = errors.New("no live model")
	ErrNothingToApply = errors.New("result carries no optimized schedule")
	ErrApplyPanic     = errors.New("panic while applying proposal")
)
