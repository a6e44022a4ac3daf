// Package generation owns the lifecycle of one video generation: submission,
// remote polling, interruption and resume, result persistence, and the shared
// observable state UI-facing callers render from.
package generation

import (
	"sync"

	"dude/internal/domain"
)

// Snapshot is an immutable view of the generation state. Progress is only
// meaningful while Status is generating; Media is non-nil iff Status is ready.
type Snapshot struct {
	Status        domain.GenerationStatus
	Progress      int
	Media         *domain.MediaRef
	ErrorMessage  string
	OperationName string
	AttemptID     uint64
}

// Store holds the shared generation state. The controller is the only writer;
// any number of observers read snapshots or subscribe to changes.
type Store struct {
	mu      sync.Mutex
	snap    Snapshot
	subs    map[int]chan Snapshot
	nextSub int
}

func NewStore() *Store {
	return &Store{
		snap: Snapshot{Status: domain.GenerationIdle},
		subs: make(map[int]chan Snapshot),
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Subscribe registers an observer. The returned channel receives every state
// change until the cancel func is called. Slow observers miss intermediate
// snapshots rather than blocking the writer; the latest state is always
// available via Snapshot.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Snapshot, 16)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

// set applies a mutation and fans the new snapshot out to subscribers. Only the
// controller calls this.
func (s *Store) set(mutate func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(&s.snap)
	for _, ch := range s.subs {
		select {
		case ch <- s.snap:
		default:
		}
	}
}
