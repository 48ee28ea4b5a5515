package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/simon-lehmann/goldfish.chat/internal/infrastructure/metrics"
	"github.com/simon-lehmann/goldfish.chat/internal/utils/idgen"
	"github.com/simon-lehmann/goldfish.chat/internal/utils/platformerrors"
)

// DefaultCapacity is the number of conversations retained per identity
// when no explicit capacity is configured.
const DefaultCapacity = 3

// Store owns one identity's conversation set and enforces the capacity
// bound. Every mutation is a full read-modify-persist cycle under the
// store mutex: the next state is built on a copy, written to the
// repository, and only published in memory once the write succeeded.
type Store struct {
	identity string
	capacity int
	repo     StateRepository
	log      zerolog.Logger
	now      func() time.Time

	mu    sync.Mutex
	state *State
}

// NewStore builds a store around already-hydrated state. A nil state
// starts the identity fresh. Capacity values below 1 fall back to
// DefaultCapacity.
func NewStore(identity string, capacity int, repo StateRepository, state *State, log zerolog.Logger) *Store {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	if state == nil {
		state = NewState()
	}
	return &Store{
		identity: identity,
		capacity: capacity,
		repo:     repo,
		log:      log.With().Str("component", "chat-store").Str("identity", identity).Logger(),
		now:      time.Now,
		state:    state,
	}
}

// Identity returns the identity this store belongs to.
func (s *Store) Identity() string { return s.identity }

// Capacity returns the conversation bound.
func (s *Store) Capacity() int { return s.capacity }

// AppendParams describes one append-or-create call.
type AppendParams struct {
	// ConversationID selects an existing conversation; empty starts a
	// new one.
	ConversationID string
	// ModelID is only honored when a new conversation is created. An
	// existing conversation keeps replying with the model it started
	// with.
	ModelID string
	// Message to append. Its Timestamp is assigned by the store.
	Message Message
}

// ListConversations returns summaries of all current records, most
// recently updated first. The result never exceeds the capacity; stored
// state that does is treated as corruption and healed in place.
func (s *Store) ListConversations(ctx context.Context) []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.healCapacityLocked(ctx)

	summaries := make([]Summary, 0, len(s.state.Conversations))
	for _, conv := range s.state.Conversations {
		summaries = append(summaries, conv.Summary())
	}
	for i := 0; i < len(summaries); i++ {
		for j := i + 1; j < len(summaries); j++ {
			if summaries[j].UpdatedAt.After(summaries[i].UpdatedAt) {
				summaries[i], summaries[j] = summaries[j], summaries[i]
			}
		}
	}
	return summaries
}

// GetConversation returns a copy of the full record, or NotFound.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, conv := range s.state.Conversations {
		if conv.ID == id {
			return conv.Clone(), nil
		}
	}
	return nil, platformerrors.New(platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
		fmt.Sprintf("conversation not found: %s", id), nil)
}

// AppendMessage appends to an existing conversation or starts a new one,
// evicting the least recently updated record when the bound would be
// exceeded. The whole lookup-evict-insert-persist sequence runs under
// the store mutex, so concurrent appenders serialize.
func (s *Store) AppendMessage(ctx context.Context, params AppendParams) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Clone()
	now := s.now()

	msg := params.Message
	msg.Timestamp = now

	var updated *Conversation
	if params.ConversationID != "" {
		for _, conv := range next.Conversations {
			if conv.ID == params.ConversationID {
				conv.Messages = append(conv.Messages, msg)
				conv.UpdatedAt = now
				updated = conv
				break
			}
		}
		if updated == nil {
			metrics.RecordStoreOp("append", "not_found")
			return nil, platformerrors.New(platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
				fmt.Sprintf("conversation not found: %s", params.ConversationID), nil)
		}
	} else {
		for len(next.Conversations) >= s.capacity {
			s.evictOldest(next)
		}

		id, err := idgen.GenerateSecureID("conv", 16)
		if err != nil {
			return nil, platformerrors.New(platformerrors.LayerDomain, platformerrors.ErrorTypeInternal,
				"generate conversation id", err)
		}
		updated = NewConversation(id, params.ModelID, msg, now)
		next.Conversations = append(next.Conversations, updated)
	}

	if err := s.persistLocked(ctx, next); err != nil {
		metrics.RecordStoreOp("append", "persist_failed")
		return nil, err
	}
	s.state = next
	metrics.RecordStoreOp("append", "ok")
	return updated.Clone(), nil
}

// DeleteConversation removes one record, or fails with NotFound.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Clone()
	index := -1
	for i, conv := range next.Conversations {
		if conv.ID == id {
			index = i
			break
		}
	}
	if index < 0 {
		metrics.RecordStoreOp("delete", "not_found")
		return platformerrors.New(platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
			fmt.Sprintf("conversation not found: %s", id), nil)
	}
	next.Conversations = append(next.Conversations[:index], next.Conversations[index+1:]...)

	if err := s.persistLocked(ctx, next); err != nil {
		metrics.RecordStoreOp("delete", "persist_failed")
		return err
	}
	s.state = next
	metrics.RecordStoreOp("delete", "ok")
	return nil
}

// ClearAll removes every conversation for the identity. Preferences are
// kept. Clearing an already-empty store succeeds.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Clone()
	next.Conversations = nil

	if err := s.persistLocked(ctx, next); err != nil {
		metrics.RecordStoreOp("clear", "persist_failed")
		return err
	}
	s.state = next
	metrics.RecordStoreOp("clear", "ok")
	return nil
}

// Preferences returns the identity's current preferences.
func (s *Store) Preferences(ctx context.Context) Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Preferences
}

// UpdatePreferences merges non-nil fields and persists the result.
func (s *Store) UpdatePreferences(ctx context.Context, update PreferencesUpdate) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Clone()
	next.Preferences.Apply(update)

	if err := s.persistLocked(ctx, next); err != nil {
		return Preferences{}, err
	}
	s.state = next
	return next.Preferences, nil
}

// evictOldest drops the conversation with the smallest UpdatedAt. Ties
// fall back to CreatedAt, then lexicographic ID, so eviction order is
// deterministic even with equal timestamps.
func (s *Store) evictOldest(state *State) {
	if len(state.Conversations) == 0 {
		return
	}
	oldest := 0
	for i := 1; i < len(state.Conversations); i++ {
		if olderThan(state.Conversations[i], state.Conversations[oldest]) {
			oldest = i
		}
	}
	evicted := state.Conversations[oldest]
	state.Conversations = append(state.Conversations[:oldest], state.Conversations[oldest+1:]...)

	metrics.EvictionsTotal.Inc()
	s.log.Info().
		Str("conversation_id", evicted.ID).
		Time("updated_at", evicted.UpdatedAt).
		Msg("evicted least recently updated conversation")
}

func olderThan(a, b *Conversation) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.Before(b.UpdatedAt)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// healCapacityLocked restores the bound if stored state somehow exceeds
// it. This should never fire; when it does it is logged as a bug signal
// and the healed state is persisted best-effort.
func (s *Store) healCapacityLocked(ctx context.Context) {
	if len(s.state.Conversations) <= s.capacity {
		return
	}
	metrics.CapacityViolationsTotal.Inc()
	violation := platformerrors.New(platformerrors.LayerDomain, platformerrors.ErrorTypeTooManyRecords,
		fmt.Sprintf("capacity invariant violated: %d records, capacity %d", len(s.state.Conversations), s.capacity), nil)
	platformerrors.Log(s.log, violation)

	next := s.state.Clone()
	for len(next.Conversations) > s.capacity {
		s.evictOldest(next)
	}
	if err := s.persistLocked(ctx, next); err != nil {
		platformerrors.Log(s.log, err)
	}
	// The healed state is published even if the write failed; serving
	// more than capacity records is the worse failure mode.
	s.state = next
}

func (s *Store) persistLocked(ctx context.Context, next *State) error {
	start := time.Now()
	err := s.repo.Save(ctx, s.identity, next)
	metrics.StateWriteDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return platformerrors.New(platformerrors.LayerDomain, platformerrors.ErrorTypePersistence,
			"persist chat state", err)
	}
	return nil
}
