package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fenwicklabs/coderunner/internal/ephemeral"
	"github.com/fenwicklabs/coderunner/internal/platform/logger"
)

func newTestQueue(t *testing.T) Queue {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run queue integration tests")
	}
	t.Setenv("REDIS_ADDR", addr)
	log, err := logger.New("test")
	require.NoError(t, err)
	store, err := ephemeral.New(log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, log)
}

func TestEnqueueReserveAck(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	jobID := uuid.NewString()

	require.NoError(t, q.Enqueue(ctx, jobID, map[string]string{"hello": "world"}, Options{}))

	// duplicate jobId is rejected.
	err := q.Enqueue(ctx, jobID, map[string]string{"hello": "world"}, Options{})
	require.ErrorIs(t, err, ErrDuplicateJob)

	job, err := q.Reserve(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, jobID, job.ID)
	require.Equal(t, 0, job.AttemptsMade)

	require.NoError(t, q.Ack(ctx, job))

	// after ack the job is gone; reserving again finds nothing.
	empty, err := q.Reserve(ctx, "worker-1")
	require.NoError(t, err)
	require.Nil(t, empty)
}

func TestReserveEmptyQueue(t *testing.T) {
	q := newTestQueue(t)
	job, err := q.Reserve(context.Background(), "worker-1")
	require.NoError(t, err)
	require.Nil(t, job)
}

func TestNackReschedulesWithBackoffThenFails(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	jobID := uuid.NewString()

	require.NoError(t, q.Enqueue(ctx, jobID, map[string]string{"k": "v"}, Options{
		Attempts:          1,
		BackoffInitialMs:  1,
		VisibilityTimeout: time.Second,
	}))

	job, err := q.Reserve(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, job)

	require.NoError(t, q.Nack(ctx, job, nil))

	// not yet due (scheduled 1ms out, but give the scheduler a moment then
	// force recovery rather than racing a real clock).
	time.Sleep(5 * time.Millisecond)
	n, err := q.RecoverExpired(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 1)

	retried, err := q.Reserve(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, retried)
	require.Equal(t, 1, retried.AttemptsMade)

	// second nack makes attemptsMade=2, which exceeds attempts=1 -> moves to
	// failed retention.
	require.NoError(t, q.Nack(ctx, retried, nil))

	gone, err := q.Reserve(ctx, "worker-1")
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestRecoverExpiredReclaimsOrphanedReservation(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	jobID := uuid.NewString()

	require.NoError(t, q.Enqueue(ctx, jobID, map[string]string{"k": "v"}, Options{
		VisibilityTimeout: 1 * time.Millisecond,
	}))

	job, err := q.Reserve(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, job)

	time.Sleep(5 * time.Millisecond)
	n, err := q.RecoverExpired(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 1)

	reclaimed, err := q.Reserve(ctx, "worker-2")
	require.NoError(t, err)
	require.NotNil(t, reclaimed)
	require.Equal(t, jobID, reclaimed.ID)
}
