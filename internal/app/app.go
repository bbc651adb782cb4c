package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/fenwicklabs/coderunner/internal/admission"
	"github.com/fenwicklabs/coderunner/internal/data/db"
	"github.com/fenwicklabs/coderunner/internal/observability"
	"github.com/fenwicklabs/coderunner/internal/pkg/dbctx"
	httpPkg "github.com/fenwicklabs/coderunner/internal/http"
	"github.com/fenwicklabs/coderunner/internal/platform/logger"
	"github.com/fenwicklabs/coderunner/internal/worker"
	"github.com/google/uuid"
)

type App struct {
	Log         *logger.Logger
	DB          *gorm.DB
	Router      *httpPkg.Server
	Cfg         Config
	Repos       Repos
	Clients     Clients
	Admission   *admission.Admission
	Metrics     *observability.Metrics
	WorkerPool  *worker.Pool
	RepairSweep *worker.RepairSweep

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "coderunner",
		Environment: os.Getenv("ENVIRONMENT"),
	})

	clients, err := wireClients(log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	theDB := clients.Postgres.DB()

	if err := db.AutoMigrateAll(theDB); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	if err := db.SeedLanguagesFromFile(theDB, cfg.LanguageSeedPath); err != nil {
		log.Sync()
		return nil, fmt.Errorf("seed runtime catalogue: %w", err)
	}

	reposet := wireRepos(theDB, log)

	languageLookup := func(dbc dbctx.Context, languageID uuid.UUID) (string, error) {
		lang, err := reposet.Catalogue.GetByID(dbc, languageID)
		if err != nil {
			return "", err
		}
		return lang.Runtime, nil
	}

	adm := admission.New(reposet.Sessions, reposet.Executions, languageLookup, clients.Store, clients.Queue, log)

	metrics := observability.Init(log)

	pool := worker.New(clients.Queue, clients.Store, reposet.Sessions, reposet.Catalogue, reposet.Executions, clients.Runner, log, worker.Config{
		Concurrency: cfg.WorkerConcurrency,
		WorkerID:    cfg.WorkerID,
	})
	repair := worker.NewRepairSweep(reposet.Executions, reposet.Executions, log, cfg.RepairConfig)

	handlerset := wireHandlers(log, reposet, adm)
	router := wireRouter(log, metrics, handlerset)

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       router,
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clients,
		Admission:    adm,
		Metrics:      metrics,
		WorkerPool:   pool,
		RepairSweep:  repair,
		otelShutdown: otelShutdown,
	}, nil
}

func (a *App) Start(runServer, runWorker bool) {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Metrics != nil {
		a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB)
		a.Metrics.StartJobQueueCollector(ctx, a.Log, a.Clients.Store.Client())
	}

	if runWorker {
		a.Log.Info("Starting worker pool...", "concurrency", a.Cfg.WorkerConcurrency)
		a.WorkerPool.Start(ctx)
		a.RepairSweep.Start(ctx)
	}
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Router != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Cfg.GracePeriod)
		if err := a.Router.Shutdown(shutdownCtx); err != nil && a.Log != nil {
			a.Log.Warn("http server shutdown failed", "error", err)
		}
		cancel()
	}
	if a.WorkerPool != nil {
		a.WorkerPool.Stop(a.Cfg.GracePeriod)
	}
	if a.RepairSweep != nil {
		a.RepairSweep.Stop()
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelShutdown(ctx); err != nil && a.Log != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
