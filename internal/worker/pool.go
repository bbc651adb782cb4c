// Package worker is the Execution Worker Pool: bounded-concurrency workers
// that reserve jobs, invoke the Runner, and persist results.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	catalogueDomain "github.com/fenwicklabs/coderunner/internal/domain/catalogue"
	executionsDomain "github.com/fenwicklabs/coderunner/internal/domain/executions"
	sessionsDomain "github.com/fenwicklabs/coderunner/internal/domain/sessions"
	"github.com/fenwicklabs/coderunner/internal/ephemeral"
	"github.com/fenwicklabs/coderunner/internal/pkg/dbctx"
	"github.com/fenwicklabs/coderunner/internal/platform/logger"
	"github.com/fenwicklabs/coderunner/internal/queue"
	"github.com/fenwicklabs/coderunner/internal/runner"
)

const defaultConcurrency = 10

// LanguageReader loads the language a session is bound to.
type LanguageReader interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*catalogueDomain.Language, error)
}

// SessionReader loads a session for the worker's step-3 lookup.
type SessionReader interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*sessionsDomain.Session, error)
}

// ExecutionStore is the worker's view of the executions repo: the
// conditional RUNNING transition and the terminal-result write both use
// UpdateFieldsUnlessStatus so a stale or duplicate delivery never clobbers
// a row another attempt already finished.
type ExecutionStore interface {
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error)
}

type Pool struct {
	q         queue.Queue
	store     ephemeral.Store
	sessions  SessionReader
	languages LanguageReader
	execs     ExecutionStore
	runner    *runner.Runner
	log       *logger.Logger

	concurrency int64
	sem         *semaphore.Weighted
	workerID    string

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

type Config struct {
	Concurrency int
	WorkerID    string
}

func New(q queue.Queue, store ephemeral.Store, sessions SessionReader, languages LanguageReader, execs ExecutionStore, r *runner.Runner, baseLog *logger.Logger, cfg Config) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.WorkerID == "" {
		cfg.WorkerID = "worker-" + uuid.NewString()
	}
	return &Pool{
		q:           q,
		store:       store,
		sessions:    sessions,
		languages:   languages,
		execs:       execs,
		runner:      r,
		log:         baseLog.With("service", "WorkerPool", "worker_id", cfg.WorkerID),
		concurrency: int64(cfg.Concurrency),
		sem:         semaphore.NewWeighted(int64(cfg.Concurrency)),
		workerID:    cfg.WorkerID,
	}
}

// Start begins the reserve loop. It stops reserving new jobs once ctx is
// canceled, lets in-flight runs complete up to a graceful period, then
// exits.
func (p *Pool) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.reserveLoop(runCtx)
	}()
}

// Stop cancels the reserve loop and waits up to gracePeriod for in-flight
// jobs to finish.
func (p *Pool) Stop(gracePeriod time.Duration) {
	if p.cancel != nil {
		p.cancel()
	}
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(gracePeriod):
		p.log.Warn("grace period exceeded waiting for in-flight jobs")
	}
}

func (p *Pool) reserveLoop(ctx context.Context) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := p.sem.Acquire(ctx, 1); err != nil {
			continue
		}

		job, err := p.q.Reserve(ctx, p.workerID)
		if err != nil {
			p.log.Warn("reserve failed", "error", err)
			p.sem.Release(1)
			continue
		}
		if job == nil {
			p.sem.Release(1)
			continue
		}

		p.wg.Add(1)
		go func(j *queue.Job) {
			defer p.wg.Done()
			defer p.sem.Release(1)
			// In-flight jobs must outlive cancellation of the reserve loop so
			// Stop's grace period can let them finish.
			p.processJob(context.WithoutCancel(ctx), j)
		}(job)
	}
}
