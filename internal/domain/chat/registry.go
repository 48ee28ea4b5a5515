package chat

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/simon-lehmann/goldfish.chat/internal/infrastructure/metrics"
	"github.com/simon-lehmann/goldfish.chat/internal/utils/platformerrors"
)

// Registry maps an opaque identity to its Store. Stores are created
// lazily, hydrated once from the repository, and kept for the process
// lifetime. The registry owns every store; nothing else holds one
// long-term.
type Registry struct {
	capacity int
	repo     StateRepository
	log      zerolog.Logger

	mu     sync.RWMutex
	stores map[string]*Store
	group  singleflight.Group
}

// NewRegistry builds an empty registry.
func NewRegistry(capacity int, repo StateRepository, log zerolog.Logger) *Registry {
	return &Registry{
		capacity: capacity,
		repo:     repo,
		log:      log.With().Str("component", "chat-registry").Logger(),
		stores:   make(map[string]*Store),
	}
}

// Resolve returns the single store for the identity, hydrating persisted
// state on first access. Concurrent resolves of the same identity share
// one hydration and receive the same store.
func (r *Registry) Resolve(ctx context.Context, identity string) (*Store, error) {
	r.mu.RLock()
	store, ok := r.stores[identity]
	r.mu.RUnlock()
	if ok {
		return store, nil
	}

	result, err, _ := r.group.Do(identity, func() (interface{}, error) {
		r.mu.RLock()
		existing, ok := r.stores[identity]
		r.mu.RUnlock()
		if ok {
			return existing, nil
		}

		state, err := r.repo.Load(ctx, identity)
		if err != nil {
			return nil, platformerrors.New(platformerrors.LayerDomain, platformerrors.ErrorTypePersistence,
				"hydrate chat state", err)
		}

		created := NewStore(identity, r.capacity, r.repo, state, r.log)

		r.mu.Lock()
		r.stores[identity] = created
		r.mu.Unlock()
		metrics.ActiveStores.Inc()

		r.log.Debug().Str("identity", identity).Bool("hydrated", state != nil).Msg("store resolved")
		return created, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Store), nil
}
