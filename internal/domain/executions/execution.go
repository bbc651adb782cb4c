// Package executions holds the Execution domain model and its lifecycle
// events. The Execution row is the durable system of record for
// status; the LifecycleEvent is an ephemeral, lossy debugging breadcrumb.
package executions

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusQueued    Status = "QUEUED"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusTimeout   Status = "TIMEOUT"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusTimeout
}

// Execution is the durable row. Fields are immutable once Status is terminal.
type Execution struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionID uuid.UUID `gorm:"type:uuid;not null;index" json:"session_id"`
	Status    string    `gorm:"column:status;not null;index" json:"status"`

	Stdout *string `gorm:"column:stdout;type:text" json:"stdout,omitempty"`
	Stderr *string `gorm:"column:stderr;type:text" json:"stderr,omitempty"`

	ExecutionTimeMs float64 `gorm:"column:execution_time_ms;not null;default:0" json:"execution_time_ms"`
	ExitCode        *int    `gorm:"column:exit_code" json:"exit_code,omitempty"`
	Timeout         bool    `gorm:"column:timeout;not null;default:false" json:"timeout"`

	CreatedAt  time.Time  `gorm:"not null;default:now();index" json:"created_at"`
	StartedAt  *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`

	// LastEventMeta is a durable snapshot of the terminal lifecycle event's
	// metadata, taken alongside the status write so it survives past the
	// ephemeral store's TTL. The full event history remains ephemeral-only.
	LastEventMeta datatypes.JSON `gorm:"column:last_event_meta" json:"last_event_meta,omitempty"`
}

func (Execution) TableName() string { return "executions" }

func (e *Execution) IsTerminal() bool { return Status(e.Status).Terminal() }

// JobPayload is the queue payload for an execution run, modeled as a tagged
// record rather than an arbitrary map.
type JobPayload struct {
	ExecutionID   uuid.UUID `json:"execution_id"`
	SessionID     uuid.UUID `json:"session_id"`
	TimeLimitMs   int       `json:"time_limit_ms"`
	MemoryLimitMB int       `json:"memory_limit_mb"`
	TraceID       string    `json:"trace_id,omitempty"`
	RequestID     string    `json:"request_id,omitempty"`
}
