// Package ephemeral is the Ephemeral Store: a Redis-backed key-value layer
// with TTL, used for lifecycle event logs and as the backing for the Job
// Queue. It owns lifecycle events and queue backing state only; it never
// touches Durable Store rows.
package ephemeral

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fenwicklabs/coderunner/internal/platform/envutil"
	"github.com/fenwicklabs/coderunner/internal/platform/logger"
)

// EventsTTL is how long a lifecycle event list survives after its last
// write.
const EventsTTL = 30 * time.Minute

type LifecycleEvent struct {
	ExecutionID string                 `json:"execution_id"`
	Stage       string                 `json:"stage"`
	Timestamp   time.Time              `json:"timestamp"`
	Attempt     int                    `json:"attempt,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type Store interface {
	// AppendEvent list-appends an event under execution:<id>:events and
	// resets the key's TTL to EventsTTL.
	AppendEvent(ctx context.Context, executionID string, event LifecycleEvent) error

	// ListEvents returns events oldest-first; lossy and best-effort, never
	// authoritative for execution status.
	ListEvents(ctx context.Context, executionID string) ([]LifecycleEvent, error)

	// Client exposes the underlying redis client for the queue package,
	// which needs raw ZADD/ZPOPMIN/pipeline access the Store interface
	// does not generalize.
	Client() *goredis.Client

	Close() error
}

type store struct {
	rdb *goredis.Client
	log *logger.Logger
}

func New(baseLog *logger.Logger) (Store, error) {
	if baseLog == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := envutil.String("REDIS_ADDR", "localhost:6379")

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &store{rdb: rdb, log: baseLog.With("service", "EphemeralStore")}, nil
}

func eventsKey(executionID string) string {
	return "execution:" + executionID + ":events"
}

func (s *store) AppendEvent(ctx context.Context, executionID string, event LifecycleEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	key := eventsKey(executionID)
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, raw)
	pipe.Expire(ctx, key, EventsTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *store) ListEvents(ctx context.Context, executionID string) ([]LifecycleEvent, error) {
	key := eventsKey(executionID)
	raws, err := s.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]LifecycleEvent, 0, len(raws))
	for _, raw := range raws {
		var ev LifecycleEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			s.log.Warn("bad lifecycle event payload", "execution_id", executionID, "error", err)
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *store) Client() *goredis.Client { return s.rdb }

func (s *store) Close() error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
