package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Mep-xx/dwellwell-sub001/internal/httpapi"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the dwellwell HTTP API.

The server opens the configured SQLite database, mounts the task and
trackable lifecycle endpoints under /api/v1, and shuts down gracefully on
SIGINT/SIGTERM.

Example:
  dwellwell serve --config ./config.yaml
  dwellwell serve --db /tmp/dwellwell.db --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts)
		},
	}
}

func runServe(opts *RootOptions) error {
	app, err := setup(opts)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := httpapi.NewServer(app.engine, app.store, app.log, app.cfg.Addr())

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return WrapExitError(ExitCommandError, "http server failed", err)
	case sig := <-sigCh:
		app.log.Info("shutting down", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return WrapExitError(ExitCommandError, "graceful shutdown failed", err)
	}
	return nil
}
