// Package executions is the Durable Store's access to the executions table:
// admission inserts the QUEUED row, the worker drives it through RUNNING to a
// terminal status, and the repair sweep reclaims rows stuck in RUNNING past
// their visibility window.
package executions

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/fenwicklabs/coderunner/internal/domain/executions"
	"github.com/fenwicklabs/coderunner/internal/pkg/dbctx"
	"github.com/fenwicklabs/coderunner/internal/platform/logger"
)

type Repo interface {
	Create(dbc dbctx.Context, exec *domain.Execution) (*domain.Execution, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Execution, error)
	ListBySession(dbc dbctx.Context, sessionID uuid.UUID, limit int) ([]*domain.Execution, error)

	// UpdateFieldsUnlessStatus applies updates unless the row's current status
	// is in disallowedStatuses, preventing a stale worker from clobbering a
	// terminal outcome (mirrors the conditional transition guard used for
	// job-style state machines). Returns whether a row was actually updated.
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error)

	// CountSince returns the number of executions for sessionID created
	// strictly after since, optionally filtered to a single status.
	CountSince(dbc dbctx.Context, sessionID uuid.UUID, since time.Time, status string) (int64, error)

	// ListStaleRunning finds executions still in RUNNING whose started_at is
	// before staleCutoff, oldest first. Rows are selected FOR UPDATE SKIP
	// LOCKED inside a short transaction that commits before returning, so the
	// locks are not held while the caller updates the rows; two concurrent
	// sweeps can list the same execution.
	ListStaleRunning(dbc dbctx.Context, staleCutoff time.Time, limit int) ([]*domain.Execution, error)
}

type repo struct {
	db  *gorm.DB
	log *logger.Logger
}

func New(db *gorm.DB, baseLog *logger.Logger) Repo {
	return &repo{db: db, log: baseLog.With("repo", "ExecutionRepo")}
}

func (r *repo) Create(dbc dbctx.Context, exec *domain.Execution) (*domain.Execution, error) {
	tx := r.tx(dbc)
	if err := tx.WithContext(dbc.Ctx).Create(exec).Error; err != nil {
		return nil, err
	}
	return exec, nil
}

func (r *repo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Execution, error) {
	tx := r.tx(dbc)
	var exec domain.Execution
	if err := tx.WithContext(dbc.Ctx).Where("id = ?", id).First(&exec).Error; err != nil {
		return nil, err
	}
	return &exec, nil
}

func (r *repo) ListBySession(dbc dbctx.Context, sessionID uuid.UUID, limit int) ([]*domain.Execution, error) {
	tx := r.tx(dbc)
	if limit <= 0 {
		limit = 10
	}
	var out []*domain.Execution
	if err := tx.WithContext(dbc.Ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error) {
	tx := r.tx(dbc)
	if id == uuid.Nil {
		return false, nil
	}
	q := tx.WithContext(dbc.Ctx).Model(&domain.Execution{}).Where("id = ?", id)
	if len(disallowedStatuses) == 1 {
		q = q.Where("status <> ?", disallowedStatuses[0])
	} else if len(disallowedStatuses) > 1 {
		q = q.Where("status NOT IN ?", disallowedStatuses)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) CountSince(dbc dbctx.Context, sessionID uuid.UUID, since time.Time, status string) (int64, error) {
	tx := r.tx(dbc)
	q := tx.WithContext(dbc.Ctx).Model(&domain.Execution{}).
		Where("session_id = ? AND created_at > ?", sessionID, since)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) ListStaleRunning(dbc dbctx.Context, staleCutoff time.Time, limit int) ([]*domain.Execution, error) {
	tx := r.tx(dbc)
	if limit <= 0 {
		limit = 25
	}
	var out []*domain.Execution
	err := tx.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var rows []*domain.Execution
		qErr := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND started_at IS NOT NULL AND started_at < ?", string(domain.StatusRunning), staleCutoff).
			Order("started_at ASC").
			Limit(limit).
			Find(&rows).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		out = rows
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}
