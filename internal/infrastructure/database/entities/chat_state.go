package entities

import (
	"time"

	"gorm.io/datatypes"
)

// ChatState holds the complete chat state of one identity as a single
// jsonb document: every conversation plus the preference blob. The row
// is always read and written whole.
type ChatState struct {
	ID        uint           `gorm:"primaryKey"`
	Identity  string         `gorm:"size:255;uniqueIndex;not null"`
	State     datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName pins the table name independent of the naming strategy.
func (ChatState) TableName() string {
	return "chat_states"
}
