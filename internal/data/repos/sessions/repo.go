// Package sessions is the Durable Store's access to the sessions table.
package sessions

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domain "github.com/fenwicklabs/coderunner/internal/domain/sessions"
	"github.com/fenwicklabs/coderunner/internal/pkg/dbctx"
	"github.com/fenwicklabs/coderunner/internal/platform/logger"
)

type Repo interface {
	Create(dbc dbctx.Context, session *domain.Session) (*domain.Session, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Session, error)
	UpdateSource(dbc dbctx.Context, id uuid.UUID, sourceCode string) (*domain.Session, error)
	Close(dbc dbctx.Context, id uuid.UUID) (*domain.Session, error)
}

type repo struct {
	db  *gorm.DB
	log *logger.Logger
}

func New(db *gorm.DB, baseLog *logger.Logger) Repo {
	return &repo{db: db, log: baseLog.With("repo", "SessionRepo")}
}

func (r *repo) Create(dbc dbctx.Context, session *domain.Session) (*domain.Session, error) {
	tx := r.tx(dbc)
	session.Status = string(domain.StatusActive)
	if err := tx.WithContext(dbc.Ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (r *repo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Session, error) {
	tx := r.tx(dbc)
	var session domain.Session
	if err := tx.WithContext(dbc.Ctx).Where("id = ?", id).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repo) UpdateSource(dbc dbctx.Context, id uuid.UUID, sourceCode string) (*domain.Session, error) {
	tx := r.tx(dbc)
	res := tx.WithContext(dbc.Ctx).Model(&domain.Session{}).
		Where("id = ? AND status = ?", id, string(domain.StatusActive)).
		Updates(map[string]interface{}{
			"source_code": sourceCode,
			"updated_at":  time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	return r.GetByID(dbc, id)
}

func (r *repo) Close(dbc dbctx.Context, id uuid.UUID) (*domain.Session, error) {
	tx := r.tx(dbc)
	if err := tx.WithContext(dbc.Ctx).Model(&domain.Session{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     string(domain.StatusInactive),
			"updated_at": time.Now(),
		}).Error; err != nil {
		return nil, err
	}
	return r.GetByID(dbc, id)
}

func (r *repo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}
