/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Warp Freight Engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment), apply flag overrides
  2. Build the logger (stdout, optional rotating file)
  3. Initialize SQLite store, optionally seed the demo scenario
  4. Create API handler, router and dispatch scheduler
  5. Run HTTP server and scheduler until a signal arrives

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides SERVER_PORT)
  -db      SQLite database path (overrides DATABASE_PATH)
           Use ":memory:" for in-memory database
  -seed    Load the company-driver demo scenario into an empty store

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (waits for a running pass)
  2. Stop accepting new connections
  3. Wait for active requests to complete (SERVER_SHUTDOWN_TIMEOUT)
  4. Close database connection and log file

EXAMPLES:
  ./server -db="./data/freight.db"
  ./server -db=":memory:" -seed
  SCHEDULER_INTERVAL=30s ./server -port=3000

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - api/scheduler.go: Background auto-assign and settlement generation
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/warp/freight-engine/api"
	"github.com/warp/freight-engine/config"
	"github.com/warp/freight-engine/logging"
	"github.com/warp/freight-engine/store/sqlite"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags
	port := flag.Int("port", cfg.Server.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.Database.Path, "SQLite database path")
	seed := flag.Bool("seed", cfg.Database.SeedDemo, "Seed the demo scenario into an empty store")
	flag.Parse()
	cfg.Server.Port = *port
	cfg.Database.Path = *dbPath
	cfg.Database.SeedDemo = *seed
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logger, logCloser := logging.New(cfg.Logging)
	defer logCloser.Close()
	logging.Install(logger)

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	handler := api.NewHandler(store, logger)

	if cfg.Database.SeedDemo {
		if err := seedDemo(context.Background(), store, handler); err != nil {
			logger.Printf("Warning: Failed to seed demo data: %v", err)
		}
	}

	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
	})

	scheduler := api.NewDispatchScheduler(handler, logger)
	scheduler.Interval = cfg.Scheduler.Interval
	scheduler.Enabled = cfg.Scheduler.Enabled

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Printf("Server starting on http://localhost:%d", cfg.Server.Port)
		logger.Printf("API available at http://localhost:%d/api", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()
		scheduler.Stop()
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Println("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Printf("Server stopped with error: %v", err)
		os.Exit(1)
	}
	logger.Println("Server stopped")
}

// seedDemo loads the first scenario when the demo org has no drivers yet.
func seedDemo(ctx context.Context, store *sqlite.Store, h *api.Handler) error {
	drivers, err := store.ListDrivers(ctx, api.DemoOrgID)
	if err != nil {
		return err
	}
	if len(drivers) > 0 {
		return nil
	}
	return h.LoadScenarioByID(ctx, "company-driver")
}
