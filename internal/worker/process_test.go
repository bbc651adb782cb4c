package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	catalogueDomain "github.com/fenwicklabs/coderunner/internal/domain/catalogue"
	executionsDomain "github.com/fenwicklabs/coderunner/internal/domain/executions"
	sessionsDomain "github.com/fenwicklabs/coderunner/internal/domain/sessions"
	"github.com/fenwicklabs/coderunner/internal/pkg/dbctx"
	"github.com/fenwicklabs/coderunner/internal/platform/logger"
	"github.com/fenwicklabs/coderunner/internal/queue"
	"github.com/fenwicklabs/coderunner/internal/runner"
)

type fakeSessionReader struct {
	session *sessionsDomain.Session
	err     error
}

func (f *fakeSessionReader) GetByID(dbc dbctx.Context, id uuid.UUID) (*sessionsDomain.Session, error) {
	return f.session, f.err
}

type fakeLanguageReader struct {
	language *catalogueDomain.Language
	err      error
}

func (f *fakeLanguageReader) GetByID(dbc dbctx.Context, id uuid.UUID) (*catalogueDomain.Language, error) {
	return f.language, f.err
}

type fakeExecutionStore struct {
	updates   []map[string]interface{}
	returnOK  bool
	returnErr error
}

func (f *fakeExecutionStore) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error) {
	f.updates = append(f.updates, updates)
	if f.returnErr != nil {
		return false, f.returnErr
	}
	return f.returnOK, nil
}

type fakeJobQueue struct {
	acked   []*queue.Job
	nacked  []*queue.Job
	ackErr  error
	nackErr error
}

func (f *fakeJobQueue) Enqueue(ctx context.Context, jobID string, payload interface{}, opts queue.Options) error {
	return nil
}
func (f *fakeJobQueue) Reserve(ctx context.Context, workerID string) (*queue.Job, error) {
	return nil, nil
}
func (f *fakeJobQueue) Ack(ctx context.Context, job *queue.Job) error {
	f.acked = append(f.acked, job)
	return f.ackErr
}
func (f *fakeJobQueue) Nack(ctx context.Context, job *queue.Job, cause error) error {
	f.nacked = append(f.nacked, job)
	return f.nackErr
}
func (f *fakeJobQueue) RecoverExpired(ctx context.Context) (int, error) { return 0, nil }

func testPoolLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	require.NoError(t, err)
	return log
}

func jobFor(t *testing.T, payload executionsDomain.JobPayload) *queue.Job {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &queue.Job{ID: payload.ExecutionID.String(), Payload: raw, Options: queue.Options{Attempts: 3, BackoffInitialMs: 2000}}
}

func newTestPool(q *fakeJobQueue, execs *fakeExecutionStore, sessions SessionReader, languages LanguageReader) *Pool {
	return &Pool{
		q:         q,
		sessions:  sessions,
		languages: languages,
		execs:     execs,
		runner:    runner.New(mustTestLogger()),
		log:       mustTestLogger().With("service", "WorkerPool"),
	}
}

func mustTestLogger() *logger.Logger {
	log, err := logger.New("test")
	if err != nil {
		panic(err)
	}
	return log
}

func TestProcessJobMalformedPayloadAcksAndDrops(t *testing.T) {
	execs := &fakeExecutionStore{returnOK: true}
	q := &fakeJobQueue{}
	p := newTestPool(q, execs, &fakeSessionReader{}, &fakeLanguageReader{})

	job := &queue.Job{ID: "bad", Payload: []byte("not-json")}
	p.processJob(context.Background(), job)

	require.Len(t, q.acked, 1)
	require.Empty(t, execs.updates)
}

func TestProcessJobSessionGoneWritesTerminalFailed(t *testing.T) {
	execs := &fakeExecutionStore{returnOK: true}
	q := &fakeJobQueue{}
	sessions := &fakeSessionReader{err: errors.New("no rows")}
	p := newTestPool(q, execs, sessions, &fakeLanguageReader{})

	payload := executionsDomain.JobPayload{ExecutionID: uuid.New(), SessionID: uuid.New(), TimeLimitMs: 5000, MemoryLimitMB: 64}
	job := jobFor(t, payload)

	p.processJob(context.Background(), job)

	require.Len(t, q.acked, 1)
	require.Len(t, execs.updates, 2) // RUNNING transition, then terminal write
	require.Equal(t, string(executionsDomain.StatusFailed), execs.updates[1]["status"])
}

func TestProcessJobUnsupportedLanguageWritesTerminalFailed(t *testing.T) {
	execs := &fakeExecutionStore{returnOK: true}
	q := &fakeJobQueue{}
	session := &sessionsDomain.Session{ID: uuid.New(), LanguageID: uuid.New(), Status: string(sessionsDomain.StatusActive)}
	sessions := &fakeSessionReader{session: session}
	languages := &fakeLanguageReader{err: errors.New("no rows")}
	p := newTestPool(q, execs, sessions, languages)

	payload := executionsDomain.JobPayload{ExecutionID: uuid.New(), SessionID: session.ID, TimeLimitMs: 5000, MemoryLimitMB: 64}
	job := jobFor(t, payload)

	p.processJob(context.Background(), job)

	require.Len(t, q.acked, 1)
	require.Equal(t, string(executionsDomain.StatusFailed), execs.updates[len(execs.updates)-1]["status"])
}

func TestProcessJobRunsAndAcksOnCompletion(t *testing.T) {
	execs := &fakeExecutionStore{returnOK: true}
	q := &fakeJobQueue{}
	session := &sessionsDomain.Session{ID: uuid.New(), LanguageID: uuid.New(), Status: string(sessionsDomain.StatusActive), SourceCode: "print('hi')"}
	language := &catalogueDomain.Language{ID: session.LanguageID, Runtime: "shell", FileName: "main.sh", RunCmdTemplate: "/bin/sh -c echo ok"}
	sessions := &fakeSessionReader{session: session}
	languages := &fakeLanguageReader{language: language}
	p := newTestPool(q, execs, sessions, languages)

	payload := executionsDomain.JobPayload{ExecutionID: uuid.New(), SessionID: session.ID, TimeLimitMs: 5000, MemoryLimitMB: 64}
	job := jobFor(t, payload)

	p.processJob(context.Background(), job)

	require.Len(t, q.acked, 1)
	require.Empty(t, q.nacked)
	last := execs.updates[len(execs.updates)-1]
	require.Equal(t, string(executionsDomain.StatusCompleted), last["status"])
}

func TestWriteTerminalNacksWhenUpdateFails(t *testing.T) {
	execs := &fakeExecutionStore{returnErr: errors.New("db down")}
	q := &fakeJobQueue{}
	p := newTestPool(q, execs, &fakeSessionReader{}, &fakeLanguageReader{})

	payload := executionsDomain.JobPayload{ExecutionID: uuid.New(), SessionID: uuid.New()}
	job := jobFor(t, payload)

	p.writeTerminal(context.Background(), job, payload, runner.Outcome{Status: runner.StatusCompleted})

	require.Len(t, q.nacked, 1)
	require.Empty(t, q.acked)
}

func TestWriteTerminalNacksWhenRowAlreadyTerminal(t *testing.T) {
	execs := &fakeExecutionStore{returnOK: false}
	q := &fakeJobQueue{}
	p := newTestPool(q, execs, &fakeSessionReader{}, &fakeLanguageReader{})

	payload := executionsDomain.JobPayload{ExecutionID: uuid.New(), SessionID: uuid.New()}
	job := jobFor(t, payload)

	p.writeTerminal(context.Background(), job, payload, runner.Outcome{Status: runner.StatusCompleted})

	require.Len(t, q.nacked, 1)
	require.Empty(t, q.acked)
}

func TestInvokeRunnerRecoversPanic(t *testing.T) {
	p := newTestPool(&fakeJobQueue{}, &fakeExecutionStore{}, &fakeSessionReader{}, &fakeLanguageReader{})
	// An empty run template yields an empty argv, which the Runner indexes
	// without a length check, so Run panics with an index out of range.
	_, err := p.invokeRunner(context.Background(), &catalogueDomain.Language{FileName: "main.sh", RunCmdTemplate: ""}, "", 1000, 64)
	require.Error(t, err)
}
