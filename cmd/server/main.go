/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the loan engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Initialize logging and tracing
  3. Open the event publisher
  4. Initialize the store (memory or SQLite)
  5. Create the loan service, API handler and router
  6. Start the overdue scheduler and the HTTP server

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: PORT or 8080)
  -db      SQLite database path; selects the SQLite backend
           Use ":memory:" for an in-memory SQLite database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the overdue scheduler
  4. Flush events and traces, close the database
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/loans.db"

  # Run with the in-memory store and Kafka events
  EVENTS_BACKEND=kafka KAFKA_BROKERS=localhost:9092 ./server

  # Run on different port
  ./server -port=3000

ENVIRONMENT:
  See config/config.go for every variable.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - loan/service.go: Loan service
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/warp/loan-engine/api"
	"github.com/warp/loan-engine/config"
	"github.com/warp/loan-engine/events"
	"github.com/warp/loan-engine/factory"
	"github.com/warp/loan-engine/loan"
	"github.com/warp/loan-engine/loan/store"
	"github.com/warp/loan-engine/observability"
	"github.com/warp/loan-engine/store/sqlite"
)

const serviceName = "loan-engine"

var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("Server failed", observability.FieldError, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	// Flags
	port := flag.String("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", "", "SQLite database path (selects the sqlite backend)")
	flag.Parse()

	cfg.Port = *port
	if *dbPath != "" {
		cfg.DataBackend = config.BackendSQLite
		cfg.SQLiteDBPath = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := observability.InitLogger(cfg.Log())
	logger = observability.Component(logger, observability.ComponentApp)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	shutdownTracing, err := observability.InitTracing(ctx, serviceName, version, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("Failed to flush traces", observability.FieldError, err)
		}
	}()

	// Events
	publisher, err := events.Open(cfg.Events(), logger)
	if err != nil {
		return fmt.Errorf("open events: %w", err)
	}
	defer publisher.Close()

	// Store
	st, closeStore, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer closeStore()

	// Service and API
	svc := loan.NewService(st,
		loan.WithPolicy(cfg.Policy()),
		loan.WithPublisher(publisher),
		loan.WithLogger(logger),
	)
	handler := api.NewHandler(svc, st, factory.NewLoanFactory(cfg.DefaultDayCount), logger)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	scheduler := api.NewOverdueScheduler(svc, cfg.OverdueInterval, logger)
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server starting",
			"addr", "http://localhost:"+cfg.Port,
			"backend", cfg.DataBackend,
			"events", cfg.EventsBackend,
			"version", version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}

// openStore returns the configured store and a function releasing it.
func openStore(cfg *config.Config) (loan.Store, func(), error) {
	switch cfg.DataBackend {
	case config.BackendSQLite:
		db, err := sqlite.New(cfg.SQLiteDBPath)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { db.Close() }, nil
	default:
		return store.NewMemory(), func() {}, nil
	}
}
