package app

import (
	"fmt"

	"github.com/fenwicklabs/coderunner/internal/data/db"
	"github.com/fenwicklabs/coderunner/internal/ephemeral"
	"github.com/fenwicklabs/coderunner/internal/platform/logger"
	"github.com/fenwicklabs/coderunner/internal/queue"
	"github.com/fenwicklabs/coderunner/internal/runner"
)

type Clients struct {
	Postgres *db.PostgresService
	Store    ephemeral.Store
	Queue    queue.Queue
	Runner   *runner.Runner
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	pg, err := db.NewPostgresService(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init postgres: %w", err)
	}

	store, err := ephemeral.New(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init ephemeral store: %w", err)
	}

	q := queue.New(store, log)

	return Clients{
		Postgres: pg,
		Store:    store,
		Queue:    q,
		Runner:   runner.New(log),
	}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Store != nil {
		_ = c.Store.Close()
		c.Store = nil
	}
}
