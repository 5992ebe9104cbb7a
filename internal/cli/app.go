// Package cli wires the daemon's dependencies for command-line entry points.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mocraimer/chrome-spaces/internal/app/spaces"
	"github.com/mocraimer/chrome-spaces/internal/application/usecase"
	"github.com/mocraimer/chrome-spaces/internal/cli/styles"
	"github.com/mocraimer/chrome-spaces/internal/config"
	"github.com/mocraimer/chrome-spaces/internal/infrastructure/persistence/sqlite"
	"github.com/mocraimer/chrome-spaces/internal/logging"
)

// App holds CLI dependencies.
type App struct {
	Config        *config.Config
	ConfigManager *config.Manager
	Theme         *styles.Theme
	Spaces        *spaces.Manager

	// ListUC serves the list command; commands that mutate go through the
	// manager directly since no browser is attached in one-shot mode.
	ListUC *usecase.ListSpacesUseCase

	db  *sql.DB
	ctx context.Context
}

// NewApp creates the CLI application with all dependencies.
func NewApp() (*App, error) {
	configManager, err := config.NewManager()
	if err != nil {
		return nil, fmt.Errorf("initialize config: %w", err)
	}
	if err = configManager.Load(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := configManager.Get()

	logger := logging.NewFromConfigValues(cfg.Logging.Level, cfg.Logging.Format)
	ctx := logging.WithContext(context.Background(), logger)

	if err = config.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbFile := cfg.Database.Path
	if dbFile == "" {
		if dbFile, err = config.GetDatabaseFile(); err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
	}

	db, err := sqlite.NewConnection(ctx, dbFile)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	manager := spaces.NewManager(ctx,
		sqlite.NewSpaceRepository(db),
		sqlite.NewArchiveRepository(db),
		ManagerOptions(cfg),
	)
	if err = manager.Hydrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("hydrate spaces: %w", err)
	}

	return &App{
		Config:        cfg,
		ConfigManager: configManager,
		Theme:         styles.NewTheme(),
		Spaces:        manager,
		ListUC:        usecase.NewListSpacesUseCase(manager, nil),
		db:            db,
		ctx:           ctx,
	}, nil
}

// ManagerOptions maps configuration onto engine tunables.
func ManagerOptions(cfg *config.Config) spaces.ManagerOptions {
	return spaces.ManagerOptions{
		DebounceInterval: time.Duration(cfg.Spaces.DebounceMs) * time.Millisecond,
		RetryAttempts:    cfg.Spaces.WriteRetryAttempts,
		RetryBackoff:     time.Duration(cfg.Spaces.WriteRetryBackoffMs) * time.Millisecond,
		MaxArchived:      cfg.Spaces.MaxArchivedSpaces,
	}
}

// Context returns the app context carrying the logger.
func (a *App) Context() context.Context {
	return a.ctx
}

// DB exposes the database handle for daemon wiring.
func (a *App) DB() *sql.DB {
	return a.db
}

// Close flushes pending writes and releases resources.
func (a *App) Close() error {
	flushCtx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
	defer cancel()
	if err := a.Spaces.Flush(flushCtx); err != nil {
		logging.FromContext(a.ctx).Warn().Err(err).Msg("flush on shutdown incomplete")
	}
	return a.db.Close()
}
