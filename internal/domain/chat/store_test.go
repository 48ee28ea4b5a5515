package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simon-lehmann/goldfish.chat/internal/utils/platformerrors"
)

// stubRepo is an in-memory StateRepository with failure injection.
type stubRepo struct {
	mu      sync.Mutex
	states  map[string]*State
	saveErr error
	loadErr error
	saves   int
}

func newStubRepo() *stubRepo {
	return &stubRepo{states: make(map[string]*State)}
}

func (r *stubRepo) Load(ctx context.Context, identity string) (*State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	state, ok := r.states[identity]
	if !ok {
		return nil, nil
	}
	return state.Clone(), nil
}

func (r *stubRepo) Save(ctx context.Context, identity string, state *State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saves++
	r.states[identity] = state.Clone()
	return nil
}

func (r *stubRepo) Delete(ctx context.Context, identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, identity)
	return nil
}

// tickingClock returns strictly increasing timestamps.
type tickingClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTickingClock() *tickingClock {
	return &tickingClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func newTestStore(t *testing.T, capacity int) (*Store, *stubRepo) {
	t.Helper()
	repo := newStubRepo()
	store := NewStore("user-1", capacity, repo, nil, zerolog.Nop())
	store.now = newTickingClock().Now
	return store, repo
}

func userMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func TestAppendMessageCreatesConversation(t *testing.T) {
	store, _ := newTestStore(t, 3)
	ctx := context.Background()

	conv, err := store.AppendMessage(ctx, AppendParams{ModelID: "gpt-test", Message: userMessage("hello there")})
	require.NoError(t, err)
	require.NotEmpty(t, conv.ID)
	assert.Equal(t, "gpt-test", conv.ModelID)
	assert.Equal(t, "hello there", conv.Title)
	assert.Equal(t, conv.CreatedAt, conv.UpdatedAt)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, RoleUser, conv.Messages[0].Role)
	assert.False(t, conv.Messages[0].Timestamp.IsZero())

	got, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "hello there", got.Messages[0].Content)
}

func TestBoundInvariantHolds(t *testing.T) {
	store, _ := newTestStore(t, 3)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := store.AppendMessage(ctx, AppendParams{ModelID: "m", Message: userMessage(fmt.Sprintf("message %d", i))})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(store.ListConversations(ctx)), 3)
	}
}

func TestFIFOEvictionOrder(t *testing.T) {
	store, _ := newTestStore(t, 3)
	ctx := context.Background()

	ids := make([]string, 4)
	for i := range ids {
		conv, err := store.AppendMessage(ctx, AppendParams{ModelID: "m", Message: userMessage(fmt.Sprintf("c%d", i+1))})
		require.NoError(t, err)
		ids[i] = conv.ID
	}

	summaries := store.ListConversations(ctx)
	require.Len(t, summaries, 3)
	remaining := make(map[string]bool, 3)
	for _, s := range summaries {
		remaining[s.ID] = true
	}
	assert.False(t, remaining[ids[0]], "oldest conversation should be evicted")
	assert.True(t, remaining[ids[1]])
	assert.True(t, remaining[ids[2]])
	assert.True(t, remaining[ids[3]])
}

func TestAppendProtectsFromEviction(t *testing.T) {
	store, _ := newTestStore(t, 3)
	ctx := context.Background()

	ids := make([]string, 3)
	for i := range ids {
		conv, err := store.AppendMessage(ctx, AppendParams{ModelID: "m", Message: userMessage(fmt.Sprintf("c%d", i+1))})
		require.NoError(t, err)
		ids[i] = conv.ID
	}

	// Touch C1 so C2 becomes the least recently updated.
	_, err := store.AppendMessage(ctx, AppendParams{ConversationID: ids[0], Message: userMessage("follow-up")})
	require.NoError(t, err)

	_, err = store.AppendMessage(ctx, AppendParams{ModelID: "m", Message: userMessage("c4")})
	require.NoError(t, err)

	_, err = store.GetConversation(ctx, ids[0])
	assert.NoError(t, err, "recently appended conversation must survive")
	_, err = store.GetConversation(ctx, ids[1])
	assert.True(t, platformerrors.IsType(err, platformerrors.ErrorTypeNotFound), "now-oldest conversation should be evicted")
}

func TestEvictionTieBreakIsDeterministic(t *testing.T) {
	store, _ := newTestStore(t, 3)
	ctx := context.Background()

	// Freeze the clock so all records share identical timestamps.
	frozen := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return frozen }

	minID := ""
	for i := 0; i < 3; i++ {
		conv, err := store.AppendMessage(ctx, AppendParams{ModelID: "m", Message: userMessage("same instant")})
		require.NoError(t, err)
		if minID == "" || conv.ID < minID {
			minID = conv.ID
		}
	}

	_, err := store.AppendMessage(ctx, AppendParams{ModelID: "m", Message: userMessage("tiebreaker")})
	require.NoError(t, err)

	_, err = store.GetConversation(ctx, minID)
	assert.True(t, platformerrors.IsType(err, platformerrors.ErrorTypeNotFound),
		"timestamp ties must evict the lexicographically smallest id")
}

func TestConcurrentCreatesRespectCapacity(t *testing.T) {
	store, _ := newTestStore(t, 3)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.AppendMessage(ctx, AppendParams{ModelID: "m", Message: userMessage(fmt.Sprintf("worker %d", i))})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	summaries := store.ListConversations(ctx)
	require.Len(t, summaries, 3)
	seen := make(map[string]bool, 3)
	for _, s := range summaries {
		assert.False(t, seen[s.ID], "duplicate conversation id %s", s.ID)
		seen[s.ID] = true
		assert.Equal(t, 1, s.MessageCount, "every record must hold a fully written message list")
	}
}

func TestConcurrentAppendsToOneConversation(t *testing.T) {
	store, _ := newTestStore(t, 3)
	ctx := context.Background()

	conv, err := store.AppendMessage(ctx, AppendParams{ModelID: "m", Message: userMessage("start")})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.AppendMessage(ctx, AppendParams{ConversationID: conv.ID, Message: userMessage(fmt.Sprintf("append %d", i))})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 17, "no append may be lost")
}

func TestAppendToUnknownIDFailsWithNotFound(t *testing.T) {
	store, _ := newTestStore(t, 3)
	ctx := context.Background()

	_, err := store.AppendMessage(ctx, AppendParams{ConversationID: "conv_doesnotexist", Message: userMessage("hi")})
	require.Error(t, err)
	assert.True(t, platformerrors.IsType(err, platformerrors.ErrorTypeNotFound))
	assert.Empty(t, store.ListConversations(ctx), "failed append must not create a conversation")
}

func TestModelIsImmutablePerConversation(t *testing.T) {
	store, _ := newTestStore(t, 3)
	ctx := context.Background()

	conv, err := store.AppendMessage(ctx, AppendParams{ModelID: "model-a", Message: userMessage("hi")})
	require.NoError(t, err)

	updated, err := store.AppendMessage(ctx, AppendParams{ConversationID: conv.ID, ModelID: "model-b", Message: userMessage("again")})
	require.NoError(t, err)
	assert.Equal(t, "model-a", updated.ModelID)
}

func TestDeleteConversation(t *testing.T) {
	store, _ := newTestStore(t, 3)
	ctx := context.Background()

	conv, err := store.AppendMessage(ctx, AppendParams{ModelID: "m", Message: userMessage("hi")})
	require.NoError(t, err)
	other, err := store.AppendMessage(ctx, AppendParams{ModelID: "m", Message: userMessage("other")})
	require.NoError(t, err)

	require.NoError(t, store.DeleteConversation(ctx, conv.ID))

	_, err = store.GetConversation(ctx, conv.ID)
	assert.True(t, platformerrors.IsType(err, platformerrors.ErrorTypeNotFound))
	_, err = store.GetConversation(ctx, other.ID)
	assert.NoError(t, err, "deleting one record must not affect others")

	err = store.DeleteConversation(ctx, conv.ID)
	assert.True(t, platformerrors.IsType(err, platformerrors.ErrorTypeNotFound))
}

func TestClearAllIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.AppendMessage(ctx, AppendParams{ModelID: "m", Message: userMessage("x")})
		require.NoError(t, err)
	}

	require.NoError(t, store.ClearAll(ctx))
	assert.Empty(t, store.ListConversations(ctx))
	require.NoError(t, store.ClearAll(ctx), "clearing an empty store must succeed")
	assert.Empty(t, store.ListConversations(ctx))
}

func TestPersistFailureLeavesStateUntouched(t *testing.T) {
	store, repo := newTestStore(t, 3)
	ctx := context.Background()

	conv, err := store.AppendMessage(ctx, AppendParams{ModelID: "m", Message: userMessage("kept")})
	require.NoError(t, err)

	repo.saveErr = fmt.Errorf("disk full")

	_, err = store.AppendMessage(ctx, AppendParams{ConversationID: conv.ID, Message: userMessage("lost")})
	require.Error(t, err)
	assert.True(t, platformerrors.IsType(err, platformerrors.ErrorTypePersistence))

	got, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 1, "unconfirmed write must not be visible")
}

func TestCapacityViolationSelfHeals(t *testing.T) {
	repo := newStubRepo()
	clock := newTickingClock()

	// A corrupt persisted unit holding more records than the bound.
	corrupt := NewState()
	for i := 0; i < 5; i++ {
		corrupt.Conversations = append(corrupt.Conversations,
			NewConversation(fmt.Sprintf("conv_%02d", i), "m", userMessage("x"), clock.Now()))
	}

	store := NewStore("user-1", 3, repo, corrupt, zerolog.Nop())
	store.now = clock.Now

	summaries := store.ListConversations(context.Background())
	require.Len(t, summaries, 3)
	for _, s := range summaries {
		assert.NotEqual(t, "conv_00", s.ID)
		assert.NotEqual(t, "conv_01", s.ID)
	}
}

func TestListOrderMostRecentlyUpdatedFirst(t *testing.T) {
	store, _ := newTestStore(t, 3)
	ctx := context.Background()

	first, err := store.AppendMessage(ctx, AppendParams{ModelID: "m", Message: userMessage("first")})
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, AppendParams{ModelID: "m", Message: userMessage("second")})
	require.NoError(t, err)

	_, err = store.AppendMessage(ctx, AppendParams{ConversationID: first.ID, Message: userMessage("touch")})
	require.NoError(t, err)

	summaries := store.ListConversations(ctx)
	require.Len(t, summaries, 2)
	assert.Equal(t, first.ID, summaries[0].ID)
}

func TestUpdatePreferencesMerges(t *testing.T) {
	store, _ := newTestStore(t, 3)
	ctx := context.Background()

	model := "gpt-test"
	prefs, err := store.UpdatePreferences(ctx, PreferencesUpdate{DefaultModel: &model})
	require.NoError(t, err)
	assert.Equal(t, "gpt-test", prefs.DefaultModel)
	assert.Equal(t, "system", prefs.Theme, "unset fields keep their value")

	theme := "dark"
	prefs, err = store.UpdatePreferences(ctx, PreferencesUpdate{Theme: &theme})
	require.NoError(t, err)
	assert.Equal(t, "gpt-test", prefs.DefaultModel)
	assert.Equal(t, "dark", prefs.Theme)
}

func TestClearAllKeepsPreferences(t *testing.T) {
	store, _ := newTestStore(t, 3)
	ctx := context.Background()

	theme := "dark"
	_, err := store.UpdatePreferences(ctx, PreferencesUpdate{Theme: &theme})
	require.NoError(t, err)

	require.NoError(t, store.ClearAll(ctx))
	assert.Equal(t, "dark", store.Preferences(ctx).Theme)
}
