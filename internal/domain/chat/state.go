package chat

import "context"

// State is the single persisted unit for one identity: the bounded
// conversation list plus the preferences blob. It is always read and
// written whole.
type State struct {
	Conversations []*Conversation `json:"conversations"`
	Preferences   Preferences     `json:"preferences"`
}

// NewState returns the default state for a fresh identity.
func NewState() *State {
	return &State{
		Conversations: nil,
		Preferences:   DefaultPreferences(),
	}
}

// Clone deep-copies the state so in-flight mutations never alias the
// published copy.
func (s *State) Clone() *State {
	dup := &State{
		Conversations: make([]*Conversation, len(s.Conversations)),
		Preferences:   s.Preferences,
	}
	for i, conv := range s.Conversations {
		dup.Conversations[i] = conv.Clone()
	}
	return dup
}

// StateRepository persists per-identity state as a whole unit.
type StateRepository interface {
	// Load returns the stored state for the identity, or nil when the
	// identity has never been persisted.
	Load(ctx context.Context, identity string) (*State, error)
	// Save writes the full state for the identity, replacing whatever
	// was stored before.
	Save(ctx context.Context, identity string, state *State) error
	// Delete removes the identity's stored state entirely.
	Delete(ctx context.Context, identity string) error
}
