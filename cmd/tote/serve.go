package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonpool/tote/internal/api"
	"github.com/tonpool/tote/pkg/common/logger"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and payment event consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			if a.verifier != nil {
				sub, err := a.verifier.Subscribe(a.nc, cfg.NATS.PaymentSubject)
				if err != nil {
					return err
				}
				defer sub.Unsubscribe()
				logger.Info("Listening for payments", "subject", cfg.NATS.PaymentSubject)
			}

			server := &http.Server{
				Addr:         cfg.API.ListenAddr,
				Handler:      api.NewRouter(api.NewHandler(a.svc)),
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 30 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("HTTP API listening", "addr", cfg.API.ListenAddr)
				errCh <- server.ListenAndServe()
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case sig := <-stop:
				logger.Info("Shutting down", "signal", sig.String())
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(ctx); err != nil {
					logger.Error("Shutdown failed", "err", err)
				}
			}
			return nil
		},
	}
}
