package cmd

import (
	"context"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mocraimer/chrome-spaces/internal/api"
	"github.com/mocraimer/chrome-spaces/internal/app/spaces"
	"github.com/mocraimer/chrome-spaces/internal/application/usecase"
	"github.com/mocraimer/chrome-spaces/internal/config"
	"github.com/mocraimer/chrome-spaces/internal/infrastructure/browser/bridge"
	"github.com/mocraimer/chrome-spaces/internal/logging"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the spaces daemon",
	Long: `Run the daemon: listen for the companion extension, reconcile window
and tab events into spaces, persist them, and serve the local control API.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runDaemon(app.Context(), app.Config)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logging.FromContext(ctx)

	browser := bridge.New(ctx, time.Duration(cfg.Bridge.RequestTimeoutMs)*time.Millisecond)
	manager := app.Spaces
	restore := spaces.NewRestoreCoordinator(browser, manager,
		cfg.Spaces.AutoRestore,
		time.Duration(cfg.Spaces.RestoreTimeoutMs)*time.Millisecond,
	)
	reconciler := spaces.NewReconciler(browser, manager, restore,
		time.Duration(cfg.Spaces.TabEventGraceMs)*time.Millisecond,
	)

	// Auto-restore waits for the first extension connection: window-creation
	// commands can only be answered by a connected extension, and failed
	// restores are never retried.
	var restoreOnce sync.Once
	browser.OnConnect(func() {
		restoreOnce.Do(func() { restore.Run(ctx) })
	})

	app.ConfigManager.Watch()
	app.ConfigManager.OnConfigChange(func(_ *config.Config) {
		log.Info().Msg("config file changed, restart to apply engine tunables")
	})

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		reconciler.Run(ctx)
		return nil
	})

	group.Go(func() error {
		return serveHTTP(ctx, "extension bridge", cfg.Bridge.ListenAddr, browser.Handler())
	})

	if cfg.API.Enabled {
		server := api.New(ctx, api.UseCases{
			List:    usecase.NewListSpacesUseCase(manager, reconciler),
			Rename:  usecase.NewRenameSpaceUseCase(manager),
			Close:   usecase.NewCloseSpaceUseCase(manager, reconciler, browser),
			Restore: usecase.NewRestoreArchivedUseCase(manager, reconciler, browser),
			Delete:  usecase.NewDeleteArchivedUseCase(manager),
		})
		group.Go(func() error {
			return server.Serve(ctx, cfg.API.ListenAddr)
		})
	}

	log.Info().
		Str("bridge_addr", cfg.Bridge.ListenAddr).
		Bool("api_enabled", cfg.API.Enabled).
		Msg("spaces daemon started")

	err := group.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if flushErr := manager.Flush(logging.WithContext(flushCtx, *log)); flushErr != nil {
		log.Error().Err(flushErr).Msg("failed to flush pending writes on shutdown")
	}

	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// serveHTTP runs one HTTP listener until ctx is canceled.
func serveHTTP(ctx context.Context, name, addr string, handler http.Handler) error {
	log := logging.FromContext(ctx)

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msgf("%s listening", name)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
