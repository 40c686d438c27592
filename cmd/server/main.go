package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"github.com/pipecraft/pipecraft-api/internal/config"
	"github.com/pipecraft/pipecraft-api/internal/dialect"
	"github.com/pipecraft/pipecraft-api/internal/engine"
	"github.com/pipecraft/pipecraft-api/internal/handlers"
	"github.com/pipecraft/pipecraft-api/internal/middleware"
	"github.com/pipecraft/pipecraft-api/internal/migration"
	"github.com/pipecraft/pipecraft-api/internal/repository"
	"github.com/pipecraft/pipecraft-api/internal/routes"

	_ "github.com/lib/pq" // PostgreSQL driver
)

type application struct {
	config *config.Config
	db     *sql.DB
	logger zerolog.Logger
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.SetFlags(0)
	log.SetOutput(logger)

	goose.SetLogger(migration.NewGooseAdapter(logger))

	// Load configuration.
	cfg := config.Load()

	// Initialize database connection.
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ping database")
	}

	// Run database migrations.
	migration.RunMigrations(cfg.DatabaseURL, logger)

	app := &application{
		config: cfg,
		db:     db,
		logger: logger,
	}

	// Reconcile runs abandoned by a previous process: with a synchronous
	// engine, nothing can still be legitimately running after a restart.
	runRepo := repository.NewRunRepository(db)
	if swept, err := runRepo.SweepStale(cfg.Engine.StaleRunAfter); err != nil {
		logger.Error().Err(err).Msg("Failed to sweep stale runs")
	} else if swept > 0 {
		logger.Warn().Int64("count", swept).Msg("Marked stale runs as failed")
	}

	// Initialize the HTTP router and middleware.
	router := app.initRouter(runRepo)
	loggedRouter := middleware.LoggingMiddleware(app.logger)(router)
	corsHandler := h.CORS(
		h.AllowedOrigins(cfg.CORSAllowedOrigins),
		h.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type"}),
		h.AllowCredentials(),
	)(loggedRouter)

	// Start the HTTP server and handle graceful shutdown.
	app.startServer(corsHandler)

	logger.Info().Msg("Application terminated.")
}

// initRouter sets up all HTTP handlers and returns the router.
func (app *application) initRouter(runRepo repository.RunRepository) http.Handler {
	connRepo := repository.NewConnectionRepository(app.db)
	syncRepo := repository.NewSyncRepository(app.db)

	eng := engine.New(connRepo, syncRepo, runRepo, dialect.Open, engine.Config{
		CallTimeout:     app.config.Engine.CallTimeout,
		TransferTimeout: app.config.Engine.TransferTimeout,
		WriteBatchSize:  app.config.Engine.WriteBatchSize,
	}, app.logger)

	connHandler := handlers.NewConnectionHandler(connRepo, dialect.Open, app.config.Engine.CallTimeout, app.logger)
	metaHandler := handlers.NewMetadataHandler(connRepo, dialect.Open, app.config.Engine.CallTimeout, app.logger)
	syncHandler := handlers.NewSyncHandler(syncRepo, connRepo, runRepo, eng, app.logger)

	return routes.NewRouter(connHandler, metaHandler, syncHandler)
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler) {
	server := &http.Server{
		Addr:    ":" + app.config.ServerPort,
		Handler: handler,
	}

	// Channel to listen for server errors
	serverErrCh := make(chan error, 1)
	go func() {
		app.logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for an interrupt signal or a server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		app.logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		app.logger.Error().Err(err).Msg("Server error occurred")
	}

	// Gracefully shut down the HTTP server.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		app.logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		app.logger.Info().Msg("HTTP server shutdown complete.")
	}
}
