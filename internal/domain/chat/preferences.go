package chat

// Preferences is the small per-identity settings blob persisted alongside
// the conversation list. It is not part of the capacity invariant.
type Preferences struct {
	DefaultModel string `json:"default_model"`
	Theme        string `json:"theme"`
}

// DefaultPreferences returns safe defaults for a fresh identity.
func DefaultPreferences() Preferences {
	return Preferences{
		DefaultModel: "",
		Theme:        "system",
	}
}

// PreferencesUpdate carries a partial update; nil fields are left unchanged.
type PreferencesUpdate struct {
	DefaultModel *string `json:"default_model,omitempty"`
	Theme        *string `json:"theme,omitempty"`
}

// Apply merges non-nil fields from the update.
func (p *Preferences) Apply(update PreferencesUpdate) {
	if update.DefaultModel != nil {
		p.DefaultModel = *update.DefaultModel
	}
	if update.Theme != nil {
		p.Theme = *update.Theme
	}
}
