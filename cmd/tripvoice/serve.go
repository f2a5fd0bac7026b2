package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tbxark/tripvoice/campaign"
	"github.com/tbxark/tripvoice/internal/httpapi"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the campaign and conversation HTTP server",
	Long: `Serves the CSV campaign upload, the campaign status, the text conversation
API a voice gateway can call and the Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			a.cfg.HTTP.Addr = addr
		}

		queue := campaign.NewQueue(a.newDispatcher(),
			campaign.WithPace(a.cfg.Campaign.Pace),
			campaign.WithLogger(a.logger),
			campaign.WithResultHook(a.metrics.ObserveCall),
		)
		srv := &http.Server{
			Addr: a.cfg.HTTP.Addr,
			Handler: httpapi.NewHandler(httpapi.Options{
				Coordinator:    a.coordinator,
				Campaign:       queue,
				Metrics:        a.metrics.Handler(),
				AllowedOrigins: a.cfg.HTTP.AllowedOrigins,
				Logger:         a.logger,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			a.logger.Info("Starting tripvoice server", "addr", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)
		case sig := <-shutdown:
			a.logger.Info("Start shutdown", "signal", sig.String())

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				a.logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				if err := srv.Close(); err != nil {
					a.logger.Error("Failed to close server", "err", err)
				}
			}
			if err := queue.Stop(ctx); err != nil {
				a.logger.Warn("Campaign did not stop in time", "err", err)
			}
			a.logger.Info("tripvoice server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on (overrides http.addr)")
}
