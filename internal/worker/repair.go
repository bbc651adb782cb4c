package worker

import (
	"context"
	"time"

	executionsDomain "github.com/fenwicklabs/coderunner/internal/domain/executions"
	"github.com/fenwicklabs/coderunner/internal/pkg/dbctx"
	"github.com/fenwicklabs/coderunner/internal/platform/logger"
)

const (
	defaultStaleAfter     = 2 * time.Minute
	defaultSweepInterval  = 30 * time.Second
	defaultSweepBatchSize = 25
)

// StaleExecutionLister is the repair sweep's read surface: rows stuck in
// RUNNING with no terminal update since the cutoff.
type StaleExecutionLister interface {
	ListStaleRunning(dbc dbctx.Context, staleCutoff time.Time, limit int) ([]*executionsDomain.Execution, error)
}

// RepairSweep periodically reclaims executions a worker reserved but never
// finished — crashed mid-run, or whose visibility timeout already returned
// the job to the queue while the row stayed RUNNING. It never touches a row
// a worker is still actively driving: the staleness cutoff is wider than any
// worker's own visibility timeout, so a row only qualifies once the queue
// itself would already consider the reservation orphaned.
type RepairSweep struct {
	execs      StaleExecutionLister
	store      ExecutionStore
	log        *logger.Logger
	staleAfter time.Duration
	interval   time.Duration
	batchSize  int

	cancel context.CancelFunc
	done   chan struct{}
}

type RepairConfig struct {
	StaleAfter time.Duration
	Interval   time.Duration
	BatchSize  int
}

func NewRepairSweep(execs StaleExecutionLister, store ExecutionStore, baseLog *logger.Logger, cfg RepairConfig) *RepairSweep {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaultStaleAfter
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultSweepInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultSweepBatchSize
	}
	return &RepairSweep{
		execs:      execs,
		store:      store,
		log:        baseLog.With("service", "RepairSweep"),
		staleAfter: cfg.StaleAfter,
		interval:   cfg.Interval,
		batchSize:  cfg.BatchSize,
		done:       make(chan struct{}),
	}
}

func (s *RepairSweep) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.sweepOnce(runCtx)
			}
		}
	}()
}

func (s *RepairSweep) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

func (s *RepairSweep) sweepOnce(ctx context.Context) {
	dbc := dbctx.Context{Ctx: ctx}
	cutoff := time.Now().Add(-s.staleAfter)

	stale, err := s.execs.ListStaleRunning(dbc, cutoff, s.batchSize)
	if err != nil {
		s.log.Warn("repair sweep list failed", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	for _, exec := range stale {
		ok, err := s.store.UpdateFieldsUnlessStatus(dbc, exec.ID, terminalStatuses, map[string]interface{}{
			"status":      string(executionsDomain.StatusFailed),
			"stderr":      "execution abandoned: no terminal update before visibility deadline",
			"finished_at": time.Now(),
		})
		if err != nil {
			s.log.Error("repair sweep update failed", "execution_id", exec.ID, "error", err)
			continue
		}
		if ok {
			s.log.Warn("repair sweep reclaimed stale running execution", "execution_id", exec.ID)
		}
	}
}
