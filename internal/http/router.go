package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/fenwicklabs/coderunner/internal/http/handlers"
	httpMW "github.com/fenwicklabs/coderunner/internal/http/middleware"
	"github.com/fenwicklabs/coderunner/internal/observability"
	"github.com/fenwicklabs/coderunner/internal/platform/logger"
)

type RouterConfig struct {
	Log       *logger.Logger
	Metrics   *observability.Metrics
	Health    *httpH.HealthHandler
	Language  *httpH.LanguageHandler
	Session   *httpH.SessionHandler
	Execution *httpH.ExecutionHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("coderunner"))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS())

	if cfg.Health != nil {
		r.GET("/health", cfg.Health.HealthCheck)
	}

	if cfg.Language != nil {
		r.GET("/languages", cfg.Language.List)
		r.GET("/languages/:id", cfg.Language.Get)
	}

	if cfg.Session != nil {
		r.POST("/code-sessions", cfg.Session.Create)
		r.GET("/code-sessions/:id", cfg.Session.Get)
		r.PATCH("/code-sessions/:id", cfg.Session.UpdateSource)
		r.POST("/code-sessions/:id/run", cfg.Session.Run)
		r.PATCH("/code-sessions/:id/close", cfg.Session.Close)
		r.GET("/code-sessions/:id/executions", cfg.Session.ListExecutions)
	}

	if cfg.Execution != nil {
		r.GET("/executions/:id", cfg.Execution.Get)
	}

	return r
}
