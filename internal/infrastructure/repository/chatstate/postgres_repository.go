// Package chatstate persists each identity's chat state as one row
// holding one jsonb document. State is never patched in place; callers
// load the whole unit, mutate it in memory, and save it back whole.
package chatstate

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/simon-lehmann/goldfish.chat/internal/domain/chat"
	"github.com/simon-lehmann/goldfish.chat/internal/infrastructure/database/entities"
	"github.com/simon-lehmann/goldfish.chat/internal/utils/platformerrors"
)

// Repository stores chat state documents in PostgreSQL.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a chat state repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Load fetches the state document for an identity. A missing row is not
// an error; it returns (nil, nil) so the caller can start fresh.
func (r *Repository) Load(ctx context.Context, identity string) (*chat.State, error) {
	var entity entities.ChatState
	if err := r.db.WithContext(ctx).
		Where("identity = ?", identity).
		First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, platformerrors.New(platformerrors.LayerRepository, platformerrors.ErrorTypePersistence,
			"load chat state", err)
	}

	var state chat.State
	if err := json.Unmarshal(entity.State, &state); err != nil {
		return nil, platformerrors.New(platformerrors.LayerRepository, platformerrors.ErrorTypePersistence,
			"decode chat state", err)
	}
	return &state, nil
}

// Save upserts the full state document for an identity.
func (r *Repository) Save(ctx context.Context, identity string, state *chat.State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return platformerrors.New(platformerrors.LayerRepository, platformerrors.ErrorTypePersistence,
			"encode chat state", err)
	}

	entity := entities.ChatState{
		Identity: identity,
		State:    payload,
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "identity"}},
			DoUpdates: clause.AssignmentColumns([]string{"state", "updated_at"}),
		}).
		Create(&entity).Error; err != nil {
		return platformerrors.New(platformerrors.LayerRepository, platformerrors.ErrorTypePersistence,
			"save chat state", err)
	}
	return nil
}

// Delete removes the state document. Deleting an absent row is a no-op.
func (r *Repository) Delete(ctx context.Context, identity string) error {
	if err := r.db.WithContext(ctx).
		Where("identity = ?", identity).
		Delete(&entities.ChatState{}).Error; err != nil {
		return platformerrors.New(platformerrors.LayerRepository, platformerrors.ErrorTypePersistence,
			"delete chat state", err)
	}
	return nil
}
