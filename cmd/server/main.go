/*
main.go - Application entry point

PURPOSE:
  Starts the leave engine HTTP server: configuration, storage, policy,
  evaluator, analysis scheduler, router and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (flags, then environment, then defaults)
  2. Load the leave policy (file or built-in)
  3. Open the store (memory, sqlite or postgres)
  4. Build evaluator + analysis service
  5. Start the analysis scheduler when an interval is set
  6. Serve HTTP until SIGINT/SIGTERM

GRACEFUL SHUTDOWN:
  1. Stop the scheduler (waits for a running batch)
  2. Stop accepting connections, drain requests (30s by default)
  3. Close the store

EXAMPLES:
  # SQLite file, built-in policy
  ./server -db="./data/leave.db"

  # In-memory store, evaluate as of a fixed date, batch every 15 minutes
  ./server -db-driver=memory -as-of=2024-06-01 -analysis-interval=15m

  # PostgreSQL with a custom policy
  DATABASE_URL=postgres://leave@localhost/leave ./server -db-driver=postgres -policy=policy.json

SEE ALSO:
  - config/config.go: every flag and environment variable
  - api/server.go: routes
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/leave-engine/analysis"
	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/eligibility"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/metrics"
	"github.com/warp/leave-engine/policy"
	"github.com/warp/leave-engine/store/memory"
	"github.com/warp/leave-engine/store/postgres"
	"github.com/warp/leave-engine/store/sqlite"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	pol, err := loadPolicy(cfg.PolicyFile)
	if err != nil {
		return err
	}
	logger.Info("policy loaded",
		"name", pol.Name,
		"departments", len(pol.Departments),
		"restricted_periods", len(pol.RestrictedPeriods),
		"enforce_entitlement", pol.EnforceEntitlement,
	)

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.DBDriver, err)
	}
	defer store.Close()

	ev, err := eligibility.NewEvaluator(pol, eligibility.Options{Observer: metrics.RuleObserver{}})
	if err != nil {
		return err
	}
	asOf := cfg.EvaluationDate()
	svc := analysis.NewService(store, ev, analysis.Options{Logger: logger, AsOf: asOf})

	var sched *analysis.Scheduler
	if cfg.AnalysisInterval > 0 {
		sched = analysis.NewScheduler(svc, cfg.AnalysisInterval, logger)
		sched.Timeout = cfg.AnalysisInterval
		sched.Start()
	}

	handler := api.NewHandler(store, svc, api.Options{Logger: logger, AsOf: asOf})
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(handler, cfg.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr, "store", cfg.DBDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if sched != nil {
			sched.Stop()
		}
		return fmt.Errorf("listen: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func loadPolicy(path string) (*policy.Policy, error) {
	if path == "" {
		return policy.Default(), nil
	}
	p, err := policy.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load policy %s: %w", path, err)
	}
	return p, nil
}

func openStore(ctx context.Context, cfg config.Config) (leave.Store, error) {
	switch cfg.DBDriver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s, err := postgres.New(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
}
