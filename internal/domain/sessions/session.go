// Package sessions holds the Session domain model: a long-lived editing
// context bound to one language, holding current source text.
package sessions

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// Session is mutated only by autosave (PATCH source) and close; never deleted
// by core logic. A session in INACTIVE refuses new executions, but its
// existing execution records remain readable.
type Session struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	LanguageID uuid.UUID `gorm:"type:uuid;not null;index" json:"language_id"`
	SourceCode string    `gorm:"column:source_code;type:text" json:"source_code"`
	Status     string    `gorm:"column:status;not null;index" json:"status"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now();index" json:"updated_at"`
}

func (Session) TableName() string { return "sessions" }

func (s *Session) IsActive() bool { return s != nil && s.Status == string(StatusActive) }

// MaxSourceBytes bounds PATCH /code-sessions/:id source_code; exceeding it
// returns a SourceTooLarge error.
const MaxSourceBytes = 1 << 20 // 1 MiB
