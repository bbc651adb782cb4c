package app

import (
	"time"

	"github.com/fenwicklabs/coderunner/internal/platform/envutil"
	"github.com/fenwicklabs/coderunner/internal/platform/logger"
	"github.com/fenwicklabs/coderunner/internal/worker"
)

type Config struct {
	Port              string
	LanguageSeedPath  string
	WorkerConcurrency int
	WorkerID          string
	RepairConfig      worker.RepairConfig
	GracePeriod       time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Port:              envutil.String("HTTP_PORT", "3000"),
		LanguageSeedPath:  envutil.String("LANGUAGE_SEED_PATH", "configs/languages.yaml"),
		WorkerConcurrency: envutil.Int("MAX_CONCURRENT_EXECUTIONS", 10),
		WorkerID:          envutil.String("WORKER_ID", ""),
		RepairConfig: worker.RepairConfig{
			StaleAfter: envutil.Millis("REPAIR_STALE_AFTER_MS", 120000),
			Interval:   envutil.Millis("REPAIR_SWEEP_INTERVAL_MS", 30000),
			BatchSize:  envutil.Int("REPAIR_SWEEP_BATCH_SIZE", 25),
		},
		GracePeriod: envutil.Millis("WORKER_SHUTDOWN_GRACE_MS", 30000),
	}
}
