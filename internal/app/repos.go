package app

import (
	"gorm.io/gorm"

	catalogueRepo "github.com/fenwicklabs/coderunner/internal/data/repos/catalogue"
	executionsRepo "github.com/fenwicklabs/coderunner/internal/data/repos/executions"
	sessionsRepo "github.com/fenwicklabs/coderunner/internal/data/repos/sessions"
	"github.com/fenwicklabs/coderunner/internal/platform/logger"
)

type Repos struct {
	Catalogue  catalogueRepo.Repo
	Sessions   sessionsRepo.Repo
	Executions executionsRepo.Repo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Catalogue:  catalogueRepo.New(db, log),
		Sessions:   sessionsRepo.New(db, log),
		Executions: executionsRepo.New(db, log),
	}
}
