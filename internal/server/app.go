// Package server initializes and runs the sync server: database and
// migrations, the HTTP endpoint, the blob breakout runner, and graceful
// shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"casesync/internal/logging"
	"casesync/internal/server/config"
	"casesync/internal/server/httpapi"
	"casesync/internal/server/processor"
	"casesync/internal/server/repositories/repomanager"
	"casesync/internal/server/services"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	httpServer *httpapi.Server
	runner     *processor.Runner
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := m.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	syncService := services.NewSyncService(db, m, cfg, logger)
	userService := services.NewUserService(db, m, cfg)
	dictService := services.NewDictionaryService(db, m)

	httpServer := httpapi.NewServer(cfg, logger, syncService, userService, dictService)

	archiver, err := processor.NewS3Archiver(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("archiver init error: %w", err)
	}
	var runnerArchiver processor.Archiver
	if archiver != nil {
		runnerArchiver = archiver
	}
	runner := processor.NewRunner(db, m, processor.NewPostgresJobsRepository(db), runnerArchiver, cfg, logger)

	return &App{
		config:     cfg,
		logger:     logger,
		db:         db,
		httpServer: httpServer,
		runner:     runner,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app", "addr", app.config.EndpointAddr)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.httpServer.Run(ctx); err != nil {
			app.logger.Error(ctx, "http server stopped", "error", err)
			cancelFunc()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.runner.Run(ctx); err != nil {
			app.logger.Error(ctx, "breakout runner stopped", "error", err)
			cancelFunc()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "shutdown error", "error", err)
	}

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close error", "error", err)
	}
}
