// Command dueue runs the durable message queue server: it loads
// configuration from the environment, wires a durable store (memory or
// postgres) into the queue engine, starts the expiry sweeper, and serves
// the HTTP boundary adapter until it receives SIGINT or SIGTERM.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombailey/dueue/internal/clock"
	"github.com/tombailey/dueue/internal/config"
	"github.com/tombailey/dueue/internal/durable"
	"github.com/tombailey/dueue/internal/durable/memorystore"
	"github.com/tombailey/dueue/internal/durable/postgresstore"
	"github.com/tombailey/dueue/internal/engine"
	"github.com/tombailey/dueue/internal/httpapi"
	"github.com/tombailey/dueue/internal/idgen"
	"github.com/tombailey/dueue/internal/logging"
	"github.com/tombailey/dueue/internal/metrics"
	"github.com/tombailey/dueue/internal/notifier"
	"github.com/tombailey/dueue/internal/sweeper"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dueue",
		Short: "dueue is a multi-subscriber durable message queue server",
		Long:  "dueue accepts messages on named queues and delivers them to independent subscribers under a reservation/acknowledgement protocol.",
	}

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.SetLevelFromString(cfg.LogLevel)
	logger := logging.Op()

	store, err := newDurableStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize durable store: %w", err)
	}
	defer store.Close()

	m := metrics.New("dueue")

	var n notifier.Notifier = notifier.Noop{}
	if cfg.Redis != nil {
		redisNotifier := notifier.NewRedisNotifier(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer redisNotifier.Close()
		n = redisNotifier
	}

	eng := engine.New(store, clock.System{}, m, n)

	if err := eng.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize engine: %w", err)
	}

	sw := sweeper.New(eng, logger, m.SweepObserved)
	sw.Start()
	defer sw.Stop()

	mux := http.NewServeMux()
	httpapi.New(eng, logger).Register(mux)
	mux.Handle("GET /metrics", m.Handler())

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: mux,
	}

	serveErrCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "port", cfg.HTTPPort, "durability_engine", cfg.DurabilityEngine)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErrCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErrCh:
		return fmt.Errorf("http server: %w", err)
	case <-sigCh:
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newDurableStore(ctx context.Context, cfg *config.Config) (durable.Store, error) {
	switch cfg.DurabilityEngine {
	case config.Postgres:
		return postgresstore.New(ctx, postgresstore.Config{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Database: cfg.Postgres.Database,
		})
	default:
		return memorystore.New(idgen.UUID{}), nil
	}
}
