package safety

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fenwicklabs/coderunner/internal/pkg/dbctx"
	"github.com/fenwicklabs/coderunner/internal/platform/logger"
)

type fakeCounter struct {
	total    int64
	failed   int64
	totalErr error
	failErr  error
}

func (f *fakeCounter) CountSince(dbc dbctx.Context, sessionID uuid.UUID, since time.Time, status string) (int64, error) {
	if status == "" {
		return f.total, f.totalErr
	}
	return f.failed, f.failErr
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	require.NoError(t, err)
	return log
}

func TestCheckAbuseAllowsUnderThreshold(t *testing.T) {
	res := CheckAbuse(context.Background(), &fakeCounter{total: 3, failed: 0}, testLogger(t), uuid.New())
	require.True(t, res.Allowed)
}

func TestCheckAbuseBlocksOnRate(t *testing.T) {
	res := CheckAbuse(context.Background(), &fakeCounter{total: 10}, testLogger(t), uuid.New())
	require.False(t, res.Allowed)
	require.Equal(t, RetryAfterSeconds, res.RetryAfterSeconds)
}

func TestCheckAbuseBlocksOnCircuit(t *testing.T) {
	res := CheckAbuse(context.Background(), &fakeCounter{total: 6, failed: 5}, testLogger(t), uuid.New())
	require.False(t, res.Allowed)
}

func TestCheckAbuseFailsOpenOnStoreError(t *testing.T) {
	res := CheckAbuse(context.Background(), &fakeCounter{totalErr: errors.New("db down")}, testLogger(t), uuid.New())
	require.True(t, res.Allowed)
}
