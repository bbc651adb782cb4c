// Package admission is Execution Admission: the atomic "create execution
// row + enqueue job" operation exposed to the API.
package admission

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	executionsDomain "github.com/fenwicklabs/coderunner/internal/domain/executions"
	sessionsDomain "github.com/fenwicklabs/coderunner/internal/domain/sessions"
	"github.com/fenwicklabs/coderunner/internal/ephemeral"
	"github.com/fenwicklabs/coderunner/internal/observability"
	"github.com/fenwicklabs/coderunner/internal/pkg/apierr"
	"github.com/fenwicklabs/coderunner/internal/pkg/dbctx"
	"github.com/fenwicklabs/coderunner/internal/platform/ctxutil"
	"github.com/fenwicklabs/coderunner/internal/platform/logger"
	"github.com/fenwicklabs/coderunner/internal/queue"
	"github.com/fenwicklabs/coderunner/internal/safety"
)

// SessionReader is the narrow session-lookup surface Admission depends on.
type SessionReader interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*sessionsDomain.Session, error)
}

// ExecutionWriter is the narrow execution-persistence surface Admission
// depends on.
type ExecutionWriter interface {
	Create(dbc dbctx.Context, exec *executionsDomain.Execution) (*executionsDomain.Execution, error)
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error)
	CountSince(dbc dbctx.Context, sessionID uuid.UUID, since time.Time, status string) (int64, error)
}

// LanguageLookup resolves a session's language to its runtime key, used
// only for the advisory loop scan; kept minimal to avoid importing the
// catalogue repo's full GORM-backed interface.
type LanguageLookup func(dbc dbctx.Context, languageID uuid.UUID) (runtimeKey string, err error)

type Admission struct {
	sessions  SessionReader
	execs     ExecutionWriter
	languages LanguageLookup
	store     ephemeral.Store
	q         queue.Queue
	log       *logger.Logger
}

func New(sessions SessionReader, execs ExecutionWriter, languages LanguageLookup, store ephemeral.Store, q queue.Queue, baseLog *logger.Logger) *Admission {
	return &Admission{
		sessions:  sessions,
		execs:     execs,
		languages: languages,
		store:     store,
		q:         q,
		log:       baseLog.With("service", "Admission"),
	}
}

type Result struct {
	ExecutionID uuid.UUID
	Status      executionsDomain.Status
}

// Submit runs the full admission pipeline with cheaper, better-error-coded
// checks first.
func (a *Admission) Submit(ctx context.Context, sessionID uuid.UUID, timeLimitMs, memoryLimitMB int) (*Result, error) {
	ctx, span := observability.Tracer().Start(ctx, "admission.submit")
	defer span.End()
	dbc := dbctx.Context{Ctx: ctx}

	if violations := safety.ValidateParams(timeLimitMs, memoryLimitMB); len(violations) > 0 {
		return nil, apierr.New(apierr.KindInvalidParameter, "%s", strings.Join(violations, "; "))
	}

	abuse := safety.CheckAbuse(ctx, a.execs, a.log, sessionID)
	if !abuse.Allowed {
		return nil, apierr.RateLimited(abuse.RetryAfterSeconds, "%s", abuse.Reason)
	}

	session, err := a.sessions.GetByID(dbc, sessionID)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindSessionNotFound, err, "session %s not found", sessionID)
	}
	if !session.IsActive() {
		return nil, apierr.New(apierr.KindSessionClosed, "session %s is closed", sessionID)
	}

	if a.languages != nil {
		if runtimeKey, err := a.languages(dbc, session.LanguageID); err == nil {
			if scan := safety.ScanLoopPatterns(session.SourceCode, runtimeKey); scan.Detected {
				a.log.Warn("loop pattern detected", "session_id", sessionID, "pattern", scan.PatternDescription)
			}
		}
	}

	executionID := uuid.New()
	exec := &executionsDomain.Execution{
		ID:        executionID,
		SessionID: sessionID,
		Status:    string(executionsDomain.StatusQueued),
	}
	if _, err := a.execs.Create(dbc, exec); err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, err, "failed to create execution row")
	}

	if a.store != nil {
		if err := a.store.AppendEvent(ctx, executionID.String(), ephemeral.LifecycleEvent{
			ExecutionID: executionID.String(),
			Stage:       string(executionsDomain.StatusQueued),
			Timestamp:   time.Now(),
			Metadata: map[string]interface{}{
				"time_limit_ms":   timeLimitMs,
				"memory_limit_mb": memoryLimitMB,
				"session_id":      sessionID.String(),
			},
		}); err != nil {
			a.log.Warn("failed to append QUEUED lifecycle event", "execution_id", executionID, "error", err)
		}
	}

	payload := executionsDomain.JobPayload{
		ExecutionID:   executionID,
		SessionID:     sessionID,
		TimeLimitMs:   timeLimitMs,
		MemoryLimitMB: memoryLimitMB,
	}
	if td := ctxutil.GetTraceData(ctx); td != nil {
		payload.TraceID = td.TraceID
		payload.RequestID = td.RequestID
	}
	if err := a.q.Enqueue(ctx, executionID.String(), payload, queue.Options{}); err != nil {
		// If the enqueue fails after the row was already created, mark it
		// FAILED before surfacing the error rather than leaving it QUEUED.
		if _, markErr := a.execs.UpdateFieldsUnlessStatus(dbc, executionID, nil, map[string]interface{}{
			"status": string(executionsDomain.StatusFailed),
			"stderr": err.Error(),
		}); markErr != nil {
			a.log.Error("failed to mark execution FAILED after enqueue failure", "execution_id", executionID, "error", markErr)
		}
		return nil, apierr.Wrap(apierr.KindInternal, err, "failed to enqueue job for execution %s", executionID)
	}

	return &Result{ExecutionID: executionID, Status: executionsDomain.StatusQueued}, nil
}
