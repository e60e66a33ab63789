// Package livemodel holds the in-memory schedule that the host renders and
// the reconciler writes to.
package livemodel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/patti-j/planettogetheraiv2-sub024/internal/domain/schedule"
	"github.com/patti-j/planettogetheraiv2-sub024/pkg/logger"
	"github.com/patti-j/planettogetheraiv2-sub024/pkg/metrics"
)

// Sentinel errors returned by Store.
var (
	ErrNotSuspended  = errors.New("refresh is not suspended")
	ErrInvalidEvent  = errors.New("invalid operation")
	ErrEventNotFound = errors.New("operation not found")
)

// Listener is notified with a fresh copy after every committed change.
type Listener func(schedule.Snapshot)

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Store is a mutex-guarded schedule. Between SuspendRefresh and ResumeRefresh
// the batch owner holds the write lock, so readers never see a half-applied batch.
type Store struct {
	mu        sync.RWMutex
	snap      schedule.Snapshot
	version   atomic.Uint64
	suspended atomic.Bool

	lmu       sync.Mutex
	listeners []Listener

	logger logger.Logger
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{logger: logger.Default().Named("livemodel")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the whole model and notifies listeners.
func (s *Store) Load(snap schedule.Snapshot) {
	s.mu.Lock()
	s.snap = snap.Clone()
	s.mu.Unlock()
	s.commit()
}

// Snapshot returns a deep copy of the current model.
func (s *Store) Snapshot() schedule.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

// Version increments on every committed change.
func (s *Store) Version() uint64 { return s.version.Load() }

// OnRefresh registers a listener.
func (s *Store) OnRefresh(l Listener) {
	if l == nil {
		return
	}
	s.lmu.Lock()
	s.listeners = append(s.listeners, l)
	s.lmu.Unlock()
}

// UpdateOperation overwrites the timing and resource of an existing operation.
func (s *Store) UpdateOperation(op schedule.Operation) error {
	if !op.Valid() {
		return ErrInvalidEvent
	}
	s.mu.Lock()
	idx := s.snap.EventIndex()
	i, ok := idx[op.ID]
	if !ok {
		s.mu.Unlock()
		return ErrEventNotFound
	}
	s.snap.Events[i] = op
	s.mu.Unlock()
	s.commit()
	return nil
}

// SuspendRefresh starts a batch. It blocks until no reader holds the model.
func (s *Store) SuspendRefresh() {
	s.mu.Lock()
	s.suspended.Store(true)
}

// ResumeRefresh ends a batch and emits one notification.
func (s *Store) ResumeRefresh() {
	if !s.suspended.CompareAndSwap(true, false) {
		s.logger.Warn(context.Background(), "resume without suspend")
		return
	}
	s.mu.Unlock()
	s.commit()
}

// FindEvent returns a pointer to the live operation. Only valid inside a batch.
func (s *Store) FindEvent(id schedule.ID) (*schedule.Operation, bool) {
	if !s.suspended.Load() {
		return nil, false
	}
	for i := len(s.snap.Events) - 1; i >= 0; i-- {
		if s.snap.Events[i].ID == id {
			return &s.snap.Events[i], true
		}
	}
	return nil, false
}

// ReplaceAssignments swaps the assignment set and returns the old one. Only valid inside a batch.
func (s *Store) ReplaceAssignments(in []schedule.Assignment) ([]schedule.Assignment, error) {
	if !s.suspended.Load() {
		return nil, ErrNotSuspended
	}
	prev := s.snap.Assignments
	s.snap.Assignments = append([]schedule.Assignment(nil), in...)
	return prev, nil
}

// ReplaceDependencies swaps the dependency set and returns the old one. Only valid inside a batch.
func (s *Store) ReplaceDependencies(in []schedule.Dependency) ([]schedule.Dependency, error) {
	if !s.suspended.Load() {
		return nil, ErrNotSuspended
	}
	prev := s.snap.Dependencies
	s.snap.Dependencies = append([]schedule.Dependency(nil), in...)
	return prev, nil
}

func (s *Store) commit() {
	v := s.version.Add(1)
	snap := s.Snapshot()
	metrics.UpdateLiveModel(len(snap.Events), v)

	s.lmu.Lock()
	ls := append([]Listener(nil), s.listeners...)
	s.lmu.Unlock()
	for _, l := range ls {
		l(snap)
	}
}
