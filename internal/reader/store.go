package reader

import (
	"log/slog"
	"sync"
)

// EventEmitter receives a transition event after every applied mutation.
// The SSE layer implements this to push state changes to the reader UI
// without depending on this package's internals.
type EventEmitter interface {
	Emit(event any)
}

// NoopEmitter is a no-op implementation of EventEmitter for testing.
type NoopEmitter struct{}

// Emit implements EventEmitter.Emit as a no-op.
func (NoopEmitter) Emit(_ any) {}

// Transition is emitted after a mutation is applied.
type Transition struct {
	Kind  string
	State State
}

// Store owns the annotation state for the open book. Mutations from any
// goroutine are serialized here: the engine's per-card sync branches run
// concurrently but their transitions are applied one at a time, so each
// applies against a complete previous snapshot.
type Store struct {
	mu      sync.Mutex
	state   State
	emitter EventEmitter
	logger  *slog.Logger
}

// NewStore creates an empty Store.
func NewStore(logger *slog.Logger, emitter EventEmitter) *Store {
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	return &Store{
		state:   NewState(),
		emitter: emitter,
		logger:  logger,
	}
}

// Dispatch applies a mutation and emits a transition event. Returns the
// mutation's validation error, if any; on error the state is unchanged.
func (s *Store) Dispatch(m Mutation) error {
	s.mu.Lock()
	next, err := apply(s.state, m)
	if err != nil {
		s.mu.Unlock()
		if s.logger != nil {
			s.logger.Warn("mutation rejected", "kind", m.Kind(), "error", err)
		}
		return err
	}
	s.state = next
	// Snapshot for the event while still holding the lock.
	event := Transition{Kind: m.Kind(), State: next.Clone()}
	s.mu.Unlock()

	s.emitter.Emit(event)
	return nil
}

// Snapshot returns a deep copy of the current state. The copy is immune to
// later mutations; the sync engine captures one snapshot per run and never
// re-reads shared state mid-run.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}
