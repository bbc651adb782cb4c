// Package queue is the Job Queue: a reliable FIFO queue built directly on
// the Ephemeral Store's Redis client. It is a hand-rolled
// primitive, not a workflow engine: enqueue, reserve, ack, nack with
// exponential backoff, and a visibility timeout that returns orphaned
// reservations to the ready set.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fenwicklabs/coderunner/internal/ephemeral"
	"github.com/fenwicklabs/coderunner/internal/platform/logger"
)

const (
	readyKey    = "queue:ready"
	retryKey    = "queue:retry"
	reservedKey = "queue:reserved"
	failedKey   = "queue:failed"
	jobKeyPfx   = "queue:job:"
)

// Options holds the per-job enqueue options: attempts, backoffInitialMs,
// and visibility timeout. Backoff is always exponential in this
// implementation, so there is no backoffType field.
type Options struct {
	Attempts         int
	BackoffInitialMs int
	// VisibilityTimeout bounds how long a reservation is held before the job
	// is treated as orphaned and returned to the ready set.
	VisibilityTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Attempts <= 0 {
		o.Attempts = 3
	}
	if o.BackoffInitialMs <= 0 {
		o.BackoffInitialMs = 2000
	}
	if o.VisibilityTimeout <= 0 {
		o.VisibilityTimeout = 30 * time.Second
	}
	return o
}

// Job is a reserved unit of work. Payload is left as raw JSON so the queue
// package stays ignorant of the execution domain; the tagged payload record
// lives in the executions package, and the queue only stores and returns
// its encoded bytes.
type Job struct {
	ID           string
	Payload      json.RawMessage
	AttemptsMade int
	Options      Options
}

type record struct {
	Payload      json.RawMessage `json:"payload"`
	AttemptsMade int             `json:"attempts_made"`
	Attempts     int             `json:"attempts"`
	BackoffMs    int             `json:"backoff_initial_ms"`
	VisibilityMs int64           `json:"visibility_ms"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}

type Queue interface {
	Enqueue(ctx context.Context, jobID string, payload interface{}, opts Options) error
	// Reserve pops the next ready job, if any, and marks it reserved with a
	// visibility deadline. Returns (nil, nil) when the queue is empty.
	Reserve(ctx context.Context, workerID string) (*Job, error)
	Ack(ctx context.Context, job *Job) error
	Nack(ctx context.Context, job *Job, cause error) error
	// RecoverExpired sweeps the retry and reserved ZSETs for entries whose
	// deadline has passed and moves them back onto the ready list. Safe to
	// call repeatedly. Concurrent callers can both move the same entry, which
	// pushes its id onto the ready list twice.
	RecoverExpired(ctx context.Context) (int, error)
}

type redisQueue struct {
	rdb *goredis.Client
	log *logger.Logger
}

func New(store ephemeral.Store, baseLog *logger.Logger) Queue {
	return &redisQueue{rdb: store.Client(), log: baseLog.With("service", "JobQueue")}
}

func jobKey(id string) string { return jobKeyPfx + id }

func (q *redisQueue) Enqueue(ctx context.Context, jobID string, payload interface{}, opts Options) error {
	opts = opts.withDefaults()
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal job payload: %w", err)
	}

	rec := record{
		Payload:      raw,
		AttemptsMade: 0,
		Attempts:     opts.Attempts,
		BackoffMs:    opts.BackoffInitialMs,
		VisibilityMs: opts.VisibilityTimeout.Milliseconds(),
		Status:       "ready",
		CreatedAt:    time.Now().UTC(),
	}
	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal job record: %w", err)
	}

	// SetNX on the job record is the dedup gate: the job id is the execution
	// id.
	ok, err := q.rdb.SetNX(ctx, jobKey(jobID), encoded, 0).Result()
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	if !ok {
		return ErrDuplicateJob
	}
	if err := q.rdb.RPush(ctx, readyKey, jobID).Err(); err != nil {
		return fmt.Errorf("enqueue: push ready: %w", err)
	}
	return nil
}

func (q *redisQueue) Reserve(ctx context.Context, workerID string) (*Job, error) {
	if _, err := q.RecoverExpired(ctx); err != nil {
		q.log.Warn("recover expired failed before reserve", "error", err)
	}

	jobID, err := q.rdb.LPop(ctx, readyKey).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reserve: pop ready: %w", err)
	}

	raw, err := q.rdb.Get(ctx, jobKey(jobID)).Result()
	if errors.Is(err, goredis.Nil) {
		// job record purged out from under us; nothing to reserve.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reserve: load job: %w", err)
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("reserve: decode job: %w", err)
	}

	rec.Status = "reserved"
	deadline := time.Now().Add(time.Duration(rec.VisibilityMs) * time.Millisecond)
	encoded, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("reserve: encode job: %w", err)
	}
	pipe := q.rdb.TxPipeline()
	pipe.Set(ctx, jobKey(jobID), encoded, 0)
	pipe.ZAdd(ctx, reservedKey, goredis.Z{Score: float64(deadline.UnixMilli()), Member: jobID})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("reserve: mark reserved: %w", err)
	}

	return &Job{
		ID:           jobID,
		Payload:      rec.Payload,
		AttemptsMade: rec.AttemptsMade,
		Options: Options{
			Attempts:          rec.Attempts,
			BackoffInitialMs:  rec.BackoffMs,
			VisibilityTimeout: time.Duration(rec.VisibilityMs) * time.Millisecond,
		},
	}, nil
}

func (q *redisQueue) Ack(ctx context.Context, job *Job) error {
	if job == nil {
		return nil
	}
	pipe := q.rdb.TxPipeline()
	pipe.ZRem(ctx, reservedKey, job.ID)
	pipe.Del(ctx, jobKey(job.ID))
	_, err := pipe.Exec(ctx)
	return err
}

func (q *redisQueue) Nack(ctx context.Context, job *Job, cause error) error {
	if job == nil {
		return nil
	}
	attemptsMade := job.AttemptsMade + 1

	if attemptsMade > job.Options.Attempts {
		rec := record{
			Payload:      job.Payload,
			AttemptsMade: attemptsMade,
			Attempts:     job.Options.Attempts,
			BackoffMs:    job.Options.BackoffInitialMs,
			VisibilityMs: job.Options.VisibilityTimeout.Milliseconds(),
			Status:       "failed",
			CreatedAt:    time.Now().UTC(),
		}
		encoded, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("nack: encode failed record: %w", err)
		}
		pipe := q.rdb.TxPipeline()
		pipe.ZRem(ctx, reservedKey, job.ID)
		pipe.Set(ctx, jobKey(job.ID), encoded, 0)
		pipe.SAdd(ctx, failedKey, job.ID)
		_, err = pipe.Exec(ctx)
		return err
	}

	// delay = backoffInitialMs * 2^(attemptsMade-1), giving 2s/4s/8s for the
	// documented defaults.
	delay := backoffDelay(job.Options.BackoffInitialMs, attemptsMade)
	runAt := time.Now().Add(delay)

	rec := record{
		Payload:      job.Payload,
		AttemptsMade: attemptsMade,
		Attempts:     job.Options.Attempts,
		BackoffMs:    job.Options.BackoffInitialMs,
		VisibilityMs: job.Options.VisibilityTimeout.Milliseconds(),
		Status:       "retry",
		CreatedAt:    time.Now().UTC(),
	}
	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("nack: encode retry record: %w", err)
	}
	pipe := q.rdb.TxPipeline()
	pipe.ZRem(ctx, reservedKey, job.ID)
	pipe.Set(ctx, jobKey(job.ID), encoded, 0)
	pipe.ZAdd(ctx, retryKey, goredis.Z{Score: float64(runAt.UnixMilli()), Member: job.ID})
	_, err = pipe.Exec(ctx)
	return err
}

func backoffDelay(backoffInitialMs, attemptsMade int) time.Duration {
	if backoffInitialMs <= 0 {
		backoffInitialMs = 2000
	}
	if attemptsMade < 1 {
		attemptsMade = 1
	}
	ms := backoffInitialMs
	for i := 1; i < attemptsMade; i++ {
		ms *= 2
	}
	return time.Duration(ms) * time.Millisecond
}

func (q *redisQueue) RecoverExpired(ctx context.Context) (int, error) {
	now := float64(time.Now().UnixMilli())
	recovered := 0

	dueRetries, err := q.rdb.ZRangeByScore(ctx, retryKey, &goredis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%f", now)}).Result()
	if err != nil {
		return recovered, fmt.Errorf("recover: scan retry: %w", err)
	}
	for _, jobID := range dueRetries {
		pipe := q.rdb.TxPipeline()
		pipe.ZRem(ctx, retryKey, jobID)
		pipe.RPush(ctx, readyKey, jobID)
		if _, err := pipe.Exec(ctx); err != nil {
			return recovered, fmt.Errorf("recover: requeue retry %s: %w", jobID, err)
		}
		recovered++
	}

	orphaned, err := q.rdb.ZRangeByScore(ctx, reservedKey, &goredis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%f", now)}).Result()
	if err != nil {
		return recovered, fmt.Errorf("recover: scan reserved: %w", err)
	}
	for _, jobID := range orphaned {
		pipe := q.rdb.TxPipeline()
		pipe.ZRem(ctx, reservedKey, jobID)
		pipe.RPush(ctx, readyKey, jobID)
		if _, err := pipe.Exec(ctx); err != nil {
			return recovered, fmt.Errorf("recover: requeue orphan %s: %w", jobID, err)
		}
		recovered++
	}

	return recovered, nil
}
