package executions

import (
	"time"

	"github.com/google/uuid"
)

// LifecycleEvent is an append-only breadcrumb in the ephemeral store. Stored
// under a TTL'd list key; lossy by design, never authoritative. Shaped as a
// closed-Stage tagged record rather than an arbitrary map.
type LifecycleEvent struct {
	ExecutionID uuid.UUID              `json:"execution_id"`
	Stage       Status                 `json:"stage"`
	Timestamp   time.Time              `json:"timestamp"`
	Attempt     int                    `json:"attempt,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// EventsTTL is how long an execution's lifecycle-event list survives after
// its last write.
const EventsTTL = 30 * time.Minute
