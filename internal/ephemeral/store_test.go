package ephemeral

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fenwicklabs/coderunner/internal/platform/logger"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run ephemeral store integration tests")
	}
	t.Setenv("REDIS_ADDR", addr)
	log, err := logger.New("test")
	require.NoError(t, err)
	s, err := New(log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreAppendAndListEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	execID := "exec-" + time.Now().Format(time.RFC3339Nano)

	require.NoError(t, s.AppendEvent(ctx, execID, LifecycleEvent{
		ExecutionID: execID,
		Stage:       "QUEUED",
		Timestamp:   time.Now(),
	}))
	require.NoError(t, s.AppendEvent(ctx, execID, LifecycleEvent{
		ExecutionID: execID,
		Stage:       "RUNNING",
		Timestamp:   time.Now(),
		Attempt:     1,
	}))

	events, err := s.ListEvents(ctx, execID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "QUEUED", events[0].Stage)
	require.Equal(t, "RUNNING", events[1].Stage)

	ttl := s.Client().TTL(ctx, eventsKey(execID)).Val()
	require.Greater(t, ttl, time.Duration(0))
	require.LessOrEqual(t, ttl, EventsTTL)
}

func TestStoreListEventsEmpty(t *testing.T) {
	s := newTestStore(t)
	events, err := s.ListEvents(context.Background(), "no-such-execution")
	require.NoError(t, err)
	require.Empty(t, events)
}
