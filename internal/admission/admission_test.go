package admission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	executionsDomain "github.com/fenwicklabs/coderunner/internal/domain/executions"
	sessionsDomain "github.com/fenwicklabs/coderunner/internal/domain/sessions"
	"github.com/fenwicklabs/coderunner/internal/pkg/apierr"
	"github.com/fenwicklabs/coderunner/internal/pkg/dbctx"
	"github.com/fenwicklabs/coderunner/internal/platform/logger"
	"github.com/fenwicklabs/coderunner/internal/queue"
)

type fakeSessions struct {
	session *sessionsDomain.Session
	err     error
}

func (f *fakeSessions) GetByID(dbc dbctx.Context, id uuid.UUID) (*sessionsDomain.Session, error) {
	return f.session, f.err
}

type fakeExecs struct {
	created       *executionsDomain.Execution
	createErr     error
	countTotal    int64
	countFailed   int64
	markedStatus  string
	markedStderr  string
	updateCalls   int
}

func (f *fakeExecs) Create(dbc dbctx.Context, exec *executionsDomain.Execution) (*executionsDomain.Execution, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = exec
	return exec, nil
}

func (f *fakeExecs) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error) {
	f.updateCalls++
	if s, ok := updates["status"].(string); ok {
		f.markedStatus = s
	}
	if s, ok := updates["stderr"].(string); ok {
		f.markedStderr = s
	}
	return true, nil
}

func (f *fakeExecs) CountSince(dbc dbctx.Context, sessionID uuid.UUID, since time.Time, status string) (int64, error) {
	if status == "" {
		return f.countTotal, nil
	}
	return f.countFailed, nil
}

type fakeQueue struct {
	enqueueErr error
	enqueued   bool
}

func (f *fakeQueue) Enqueue(ctx context.Context, jobID string, payload interface{}, opts queue.Options) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.enqueued = true
	return nil
}
func (f *fakeQueue) Reserve(ctx context.Context, workerID string) (*queue.Job, error) { return nil, nil }
func (f *fakeQueue) Ack(ctx context.Context, job *queue.Job) error                     { return nil }
func (f *fakeQueue) Nack(ctx context.Context, job *queue.Job, cause error) error       { return nil }
func (f *fakeQueue) RecoverExpired(ctx context.Context) (int, error)                  { return 0, nil }

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	require.NoError(t, err)
	return log
}

func activeSession() *sessionsDomain.Session {
	return &sessionsDomain.Session{ID: uuid.New(), LanguageID: uuid.New(), Status: string(sessionsDomain.StatusActive)}
}

func TestSubmitHappyPath(t *testing.T) {
	session := activeSession()
	execs := &fakeExecs{}
	q := &fakeQueue{}
	a := New(&fakeSessions{session: session}, execs, nil, nil, q, testLogger(t))

	res, err := a.Submit(context.Background(), session.ID, 5000, 256)
	require.NoError(t, err)
	require.Equal(t, executionsDomain.StatusQueued, res.Status)
	require.True(t, q.enqueued)
	require.NotNil(t, execs.created)
	require.Equal(t, res.ExecutionID, execs.created.ID)
}

func TestSubmitInvalidParameter(t *testing.T) {
	session := activeSession()
	a := New(&fakeSessions{session: session}, &fakeExecs{}, nil, nil, &fakeQueue{}, testLogger(t))

	_, err := a.Submit(context.Background(), session.ID, 50, 256)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	require.Equal(t, apierr.KindInvalidParameter, apiErr.Kind)
}

func TestSubmitRateLimited(t *testing.T) {
	session := activeSession()
	execs := &fakeExecs{countTotal: 10}
	a := New(&fakeSessions{session: session}, execs, nil, nil, &fakeQueue{}, testLogger(t))

	_, err := a.Submit(context.Background(), session.ID, 5000, 256)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	require.Equal(t, apierr.KindRateLimited, apiErr.Kind)
	require.Equal(t, 60, apiErr.RetryAfter)
}

func TestSubmitSessionNotFound(t *testing.T) {
	a := New(&fakeSessions{err: errors.New("no rows")}, &fakeExecs{}, nil, nil, &fakeQueue{}, testLogger(t))

	_, err := a.Submit(context.Background(), uuid.New(), 5000, 256)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	require.Equal(t, apierr.KindSessionNotFound, apiErr.Kind)
}

func TestSubmitSessionClosed(t *testing.T) {
	session := activeSession()
	session.Status = string(sessionsDomain.StatusInactive)
	a := New(&fakeSessions{session: session}, &fakeExecs{}, nil, nil, &fakeQueue{}, testLogger(t))

	_, err := a.Submit(context.Background(), session.ID, 5000, 256)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	require.Equal(t, apierr.KindSessionClosed, apiErr.Kind)
}

func TestSubmitMarksFailedWhenEnqueueFails(t *testing.T) {
	session := activeSession()
	execs := &fakeExecs{}
	q := &fakeQueue{enqueueErr: errors.New("redis down")}
	a := New(&fakeSessions{session: session}, execs, nil, nil, q, testLogger(t))

	_, err := a.Submit(context.Background(), session.ID, 5000, 256)
	require.Error(t, err)
	require.Equal(t, string(executionsDomain.StatusFailed), execs.markedStatus)
	require.Contains(t, execs.markedStderr, "redis down")
}
