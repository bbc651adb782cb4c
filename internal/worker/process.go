package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	catalogueDomain "github.com/fenwicklabs/coderunner/internal/domain/catalogue"
	executionsDomain "github.com/fenwicklabs/coderunner/internal/domain/executions"
	"github.com/fenwicklabs/coderunner/internal/ephemeral"
	"github.com/fenwicklabs/coderunner/internal/observability"
	"github.com/fenwicklabs/coderunner/internal/pkg/dbctx"
	"github.com/fenwicklabs/coderunner/internal/queue"
	"github.com/fenwicklabs/coderunner/internal/runner"
)

var terminalStatuses = []string{
	string(executionsDomain.StatusCompleted),
	string(executionsDomain.StatusFailed),
	string(executionsDomain.StatusTimeout),
}

func (p *Pool) processJob(ctx context.Context, job *queue.Job) {
	ctx, span := observability.Tracer().Start(ctx, "worker.process_job")
	defer span.End()

	var payload executionsDomain.JobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		p.log.Error("malformed job payload, acking to drop it", "job_id", job.ID, "error", err)
		if err := p.q.Ack(ctx, job); err != nil {
			p.log.Error("ack failed after malformed payload", "job_id", job.ID, "error", err)
		}
		return
	}

	fields := []interface{}{"execution_id", payload.ExecutionID, "session_id", payload.SessionID, "attempt", job.AttemptsMade}
	if payload.TraceID != "" {
		fields = append(fields, "trace_id", payload.TraceID)
	}
	if payload.RequestID != "" {
		fields = append(fields, "request_id", payload.RequestID)
	}
	log := p.log.With(fields...)
	dbc := dbctx.Context{Ctx: ctx}

	// Transition to RUNNING. Conditional on the row existing and not
	// already terminal; if the row is missing this is an admission bug,
	// not a worker bug, and we ack rather than retry forever.
	ok, err := p.execs.UpdateFieldsUnlessStatus(dbc, payload.ExecutionID, terminalStatuses, map[string]interface{}{
		"status":     string(executionsDomain.StatusRunning),
		"started_at": time.Now(),
	})
	if err != nil {
		log.Error("transient error transitioning to RUNNING, nacking", "error", err)
		p.nack(ctx, job, err)
		return
	}
	if !ok {
		log.Warn("execution row missing or already terminal at RUNNING transition, acking")
		if err := p.q.Ack(ctx, job); err != nil {
			log.Error("ack failed", "error", err)
		}
		return
	}
	p.appendEvent(ctx, payload.ExecutionID, string(executionsDomain.StatusRunning), job.AttemptsMade, "", nil)

	// Load session + language. Missing session is deterministic.
	session, err := p.sessions.GetByID(dbc, payload.SessionID)
	if err != nil {
		log.Warn("session gone, writing terminal FAILED", "error", err)
		p.writeTerminal(ctx, job, payload, runner.Outcome{
			Status: runner.StatusFailed,
			Stderr: "SessionGone",
		})
		return
	}
	language, err := p.languages.GetByID(dbc, session.LanguageID)
	if err != nil {
		log.Warn("language missing for session, writing terminal FAILED", "error", err)
		p.writeTerminal(ctx, job, payload, runner.Outcome{
			Status: runner.StatusFailed,
			Stderr: "Unsupported language: " + session.LanguageID.String(),
		})
		return
	}
	if len(language.RunCommand()) == 0 {
		log.Warn("language row has no run command template, writing terminal FAILED", "runtime", language.Runtime)
		p.writeTerminal(ctx, job, payload, runner.UnsupportedRuntime(language.Runtime))
		return
	}

	// Invoke the Runner. A panic here is transient infrastructure, not a
	// code-level failure, so it is converted to a nack.
	outcome, err := p.invokeRunner(ctx, language, session.SourceCode, payload.TimeLimitMs, payload.MemoryLimitMB)
	if err != nil {
		log.Error("runner panicked, nacking for retry", "error", err)
		p.nack(ctx, job, err)
		return
	}

	// Persist, append event, ack. A failure to do so is transient
	// infrastructure and triggers a nack; if this is the queue's last
	// attempt the repair sweep will eventually reclaim the row.
	p.writeTerminal(ctx, job, payload, outcome)
}

func (p *Pool) invokeRunner(ctx context.Context, language *catalogueDomain.Language, source string, timeLimitMs, memoryLimitMB int) (outcome runner.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{r}
		}
	}()
	descriptor := runner.Descriptor{
		RuntimeKey:     language.Runtime,
		FileName:       language.FileName,
		RunCommand:     language.RunCommand(),
		CompileCommand: language.CompileCommand(),
	}
	outcome = p.runner.Run(ctx, descriptor, source, timeLimitMs, memoryLimitMB)
	return outcome, nil
}

type panicError struct{ v interface{} }

func (p panicError) Error() string { return "panic in runner" }

func (p *Pool) writeTerminal(ctx context.Context, job *queue.Job, payload executionsDomain.JobPayload, outcome runner.Outcome) {
	dbc := dbctx.Context{Ctx: ctx}
	updates := map[string]interface{}{
		"status":            string(outcome.Status),
		"stdout":            outcome.Stdout,
		"stderr":            outcome.Stderr,
		"execution_time_ms": outcome.ExecutionTimeMs,
		"exit_code":         outcome.ExitCode,
		"timeout":           outcome.Timeout,
		"finished_at":       time.Now(),
	}
	if meta, err := json.Marshal(map[string]interface{}{
		"execution_time_ms": outcome.ExecutionTimeMs,
		"attempt":           job.AttemptsMade,
		"trace_id":          payload.TraceID,
		"request_id":        payload.RequestID,
	}); err != nil {
		p.log.Warn("failed to marshal last-event metadata snapshot", "execution_id", payload.ExecutionID, "error", err)
	} else {
		updates["last_event_meta"] = datatypes.JSON(meta)
	}

	ok, err := p.execs.UpdateFieldsUnlessStatus(dbc, payload.ExecutionID, terminalStatuses, updates)
	if err != nil || !ok {
		if err != nil {
			p.log.Error("failed to write terminal result, nacking for retry", "execution_id", payload.ExecutionID, "error", err)
		}
		p.nack(ctx, job, err)
		return
	}

	p.appendEvent(ctx, payload.ExecutionID, string(outcome.Status), job.AttemptsMade, outcome.Stderr, map[string]interface{}{
		"execution_time_ms": outcome.ExecutionTimeMs,
	})

	if err := p.q.Ack(ctx, job); err != nil {
		p.log.Error("ack failed after terminal write", "execution_id", payload.ExecutionID, "error", err)
	}
}

func (p *Pool) nack(ctx context.Context, job *queue.Job, cause error) {
	if err := p.q.Nack(ctx, job, cause); err != nil {
		p.log.Error("nack itself failed", "job_id", job.ID, "error", err)
	}
}

func (p *Pool) appendEvent(ctx context.Context, executionID uuid.UUID, stage string, attempt int, message string, metadata map[string]interface{}) {
	if p.store == nil {
		return
	}
	if err := p.store.AppendEvent(ctx, executionID.String(), ephemeral.LifecycleEvent{
		ExecutionID: executionID.String(),
		Stage:       stage,
		Timestamp:   time.Now(),
		Attempt:     attempt,
		Message:     message,
		Metadata:    metadata,
	}); err != nil {
		p.log.Warn("failed to append lifecycle event", "execution_id", executionID, "stage", stage, "error", err)
	}
}
