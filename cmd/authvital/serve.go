package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/authvital/internal/http/server"
	"github.com/dropDatabas3/authvital/internal/observability/logger"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			log := logger.Named("serve")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := server.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			bg, cancelBG := context.WithCancel(ctx)
			defer cancelBG()
			app.RunBackground(bg)

			srv := app.HTTPServer()
			errCh := make(chan error, 1)
			go func() {
				log.Info("listening",
					logger.String("addr", srv.Addr),
					logger.String("issuer", cfg.JWT.Issuer),
					logger.String("storage", cfg.Storage.Driver),
					logger.String("cache", cfg.Cache.Kind),
				)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("graceful shutdown failed", logger.Err(err))
				return err
			}
			return nil
		},
	}
}
