package history

import (
	"time"

	"github.com/patti-j/planettogetheraiv2-sub024/pkg/logger"
)

// Option applies a configuration option to the SQLiteStore.
type Option func(*SQLiteStore)

// WithBusyTimeout sets how long writers wait for the database lock.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *SQLiteStore) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}

// WithMaxLimit caps how many runs a single List call returns.
func WithMaxLimit(n int) Option {
	return func(s *SQLiteStore) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *SQLiteStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) {
		if now != nil {
			s.now = now
		}
	}
}
