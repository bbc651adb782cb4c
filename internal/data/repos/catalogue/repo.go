// Package catalogue is the Durable Store's read-only access to the Runtime
// Catalogue.
package catalogue

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	domain "github.com/fenwicklabs/coderunner/internal/domain/catalogue"
	"github.com/fenwicklabs/coderunner/internal/pkg/dbctx"
	"github.com/fenwicklabs/coderunner/internal/platform/logger"
)

type Repo interface {
	List(dbc dbctx.Context) ([]*domain.Language, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Language, error)
	GetByRuntime(dbc dbctx.Context, runtime string) (*domain.Language, error)
}

type repo struct {
	db  *gorm.DB
	log *logger.Logger
}

func New(db *gorm.DB, baseLog *logger.Logger) Repo {
	return &repo{db: db, log: baseLog.With("repo", "CatalogueRepo")}
}

func (r *repo) List(dbc dbctx.Context) ([]*domain.Language, error) {
	tx := r.tx(dbc)
	var out []*domain.Language
	if err := tx.WithContext(dbc.Ctx).Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Language, error) {
	tx := r.tx(dbc)
	var lang domain.Language
	if err := tx.WithContext(dbc.Ctx).Where("id = ?", id).First(&lang).Error; err != nil {
		return nil, err
	}
	return &lang, nil
}

func (r *repo) GetByRuntime(dbc dbctx.Context, runtime string) (*domain.Language, error) {
	tx := r.tx(dbc)
	var lang domain.Language
	if err := tx.WithContext(dbc.Ctx).Where("runtime = ?", runtime).First(&lang).Error; err != nil {
		return nil, err
	}
	return &lang, nil
}

func (r *repo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}
