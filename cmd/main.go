package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fenwicklabs/coderunner/internal/app"
)

func envTrue(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	runServer := envTrue("RUN_SERVER", true)
	runWorker := envTrue("RUN_WORKER", false)

	a.Start(runServer, runWorker)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	if runServer {
		go func() {
			fmt.Printf("Server listening on :%s\n", a.Cfg.Port)
			serverErr <- a.Run(":" + a.Cfg.Port)
		}()
	}

	select {
	case <-ctx.Done():
		a.Log.Info("shutdown signal received, draining...")
	case err := <-serverErr:
		if err != nil {
			a.Log.Warn("server failed", "error", err)
		}
	}

	a.Close()
}
