package chatstate

import (
	"context"
	"sync"

	"github.com/simon-lehmann/goldfish.chat/internal/domain/chat"
)

// InMemoryRepository is a thread-safe state store useful for demos and
// tests. It honors the same whole-document contract as the PostgreSQL
// repository: stored state is cloned on the way in and out.
type InMemoryRepository struct {
	mu     sync.RWMutex
	states map[string]*chat.State
}

// NewInMemoryRepository builds an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{states: make(map[string]*chat.State)}
}

// Load returns a copy of the identity's state, or (nil, nil) when none
// was ever saved.
func (r *InMemoryRepository) Load(ctx context.Context, identity string) (*chat.State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.states[identity]
	if !ok {
		return nil, nil
	}
	return state.Clone(), nil
}

// Save stores a copy of the full state document.
func (r *InMemoryRepository) Save(ctx context.Context, identity string, state *chat.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.states[identity] = state.Clone()
	return nil
}

// Delete removes the identity's state. Absent identities are a no-op.
func (r *InMemoryRepository) Delete(ctx context.Context, identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.states, identity)
	return nil
}
