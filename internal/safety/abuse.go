package safety

import (
	"context"
	"time"

	"github.com/google/uuid"

	executionsDomain "github.com/fenwicklabs/coderunner/internal/domain/executions"
	"github.com/fenwicklabs/coderunner/internal/pkg/dbctx"
	"github.com/fenwicklabs/coderunner/internal/platform/logger"
)

const (
	abuseWindow          = 60 * time.Second
	rateLimitThreshold   = 10
	circuitFailThreshold = 5
	RetryAfterSeconds    = 60
)

// ExecutionCounter is the subset of the executions repo the abuse check
// needs, kept narrow so this package does not import the repo package
// directly (avoids an import cycle with admission).
type ExecutionCounter interface {
	CountSince(dbc dbctx.Context, sessionID uuid.UUID, since time.Time, status string) (int64, error)
}

type AbuseResult struct {
	Allowed           bool
	Reason            string
	RetryAfterSeconds int
}

// CheckAbuse blocks a session that has made 10+ admissions in the last 60s
// (rate) or 5+ FAILED outcomes in the last 60s (circuit). On a store
// failure it fails OPEN and logs, so a telemetry outage never blocks
// admission.
func CheckAbuse(ctx context.Context, repo ExecutionCounter, log *logger.Logger, sessionID uuid.UUID) AbuseResult {
	dbc := dbctx.Context{Ctx: ctx}
	since := time.Now().Add(-abuseWindow)

	total, err := repo.CountSince(dbc, sessionID, since, "")
	if err != nil {
		log.Warn("checkAbuse: rate query failed, failing open", "session_id", sessionID, "error", err)
		return AbuseResult{Allowed: true}
	}
	if total >= rateLimitThreshold {
		return AbuseResult{Allowed: false, Reason: "rate limit exceeded", RetryAfterSeconds: RetryAfterSeconds}
	}

	failed, err := repo.CountSince(dbc, sessionID, since, string(executionsDomain.StatusFailed))
	if err != nil {
		log.Warn("checkAbuse: circuit query failed, failing open", "session_id", sessionID, "error", err)
		return AbuseResult{Allowed: true}
	}
	if failed >= circuitFailThreshold {
		return AbuseResult{Allowed: false, Reason: "too many consecutive failures", RetryAfterSeconds: RetryAfterSeconds}
	}

	return AbuseResult{Allowed: true}
}
