package app

import (
	"github.com/fenwicklabs/coderunner/internal/admission"
	httpPkg "github.com/fenwicklabs/coderunner/internal/http"
	httpH "github.com/fenwicklabs/coderunner/internal/http/handlers"
	"github.com/fenwicklabs/coderunner/internal/observability"
	"github.com/fenwicklabs/coderunner/internal/platform/logger"
)

type Handlers struct {
	Health    *httpH.HealthHandler
	Language  *httpH.LanguageHandler
	Session   *httpH.SessionHandler
	Execution *httpH.ExecutionHandler
}

func wireHandlers(log *logger.Logger, repos Repos, adm *admission.Admission) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:    httpH.NewHealthHandler(),
		Language:  httpH.NewLanguageHandler(repos.Catalogue),
		Session:   httpH.NewSessionHandler(repos.Sessions, repos.Catalogue, repos.Executions, adm),
		Execution: httpH.NewExecutionHandler(repos.Executions),
	}
}

func wireRouter(log *logger.Logger, metrics *observability.Metrics, handlers Handlers) *httpPkg.Server {
	return httpPkg.NewServer(httpPkg.RouterConfig{
		Log:       log,
		Metrics:   metrics,
		Health:    handlers.Health,
		Language:  handlers.Language,
		Session:   handlers.Session,
		Execution: handlers.Execution,
	})
}
