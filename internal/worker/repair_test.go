package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	executionsDomain "github.com/fenwicklabs/coderunner/internal/domain/executions"
	"github.com/fenwicklabs/coderunner/internal/pkg/dbctx"
)

type fakeStaleLister struct {
	rows []*executionsDomain.Execution
	err  error
}

func (f *fakeStaleLister) ListStaleRunning(dbc dbctx.Context, staleCutoff time.Time, limit int) ([]*executionsDomain.Execution, error) {
	return f.rows, f.err
}

func TestRepairSweepMarksStaleRowsFailed(t *testing.T) {
	row := &executionsDomain.Execution{ID: uuid.New(), Status: string(executionsDomain.StatusRunning)}
	lister := &fakeStaleLister{rows: []*executionsDomain.Execution{row}}
	store := &fakeExecutionStore{returnOK: true}

	sweep := NewRepairSweep(lister, store, testPoolLogger(t), RepairConfig{})
	sweep.sweepOnce(context.Background())

	require.Len(t, store.updates, 1)
	require.Equal(t, string(executionsDomain.StatusFailed), store.updates[0]["status"])
}

func TestRepairSweepSkipsWhenNothingStale(t *testing.T) {
	lister := &fakeStaleLister{}
	store := &fakeExecutionStore{returnOK: true}

	sweep := NewRepairSweep(lister, store, testPoolLogger(t), RepairConfig{})
	sweep.sweepOnce(context.Background())

	require.Empty(t, store.updates)
}

func TestRepairSweepStartStop(t *testing.T) {
	lister := &fakeStaleLister{}
	store := &fakeExecutionStore{returnOK: true}

	sweep := NewRepairSweep(lister, store, testPoolLogger(t), RepairConfig{Interval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweep.Start(ctx)
	time.Sleep(25 * time.Millisecond)
	sweep.Stop()
}
