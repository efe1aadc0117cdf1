// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/pdiddy/insurance-extract/internal/remote"
	"github.com/pdiddy/insurance-extract/internal/server"
	"github.com/pdiddy/insurance-extract/internal/session"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the single-page web UI",
	Long: `Serve starts a local web server with the upload page. One session is
shared by every browser tab, as in a single-user desktop tool. Request
logs are written as JSON; Prometheus metrics are served on /metrics.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :3000)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	bindFlag(cmd, "serve.addr", "addr")
	cfg := loadConfig()
	logger := slog.Default()

	client := remote.NewClient(cfg.Service)
	opts := []session.Option{session.WithLogger(logger)}

	store, err := openHistory(cfg.History, false)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		opts = append(opts, session.WithRecorder(store))
	}
	ctrl := session.New(client, opts...)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv, err := server.New(ctrl, client, cfg.Serve, logger, reg)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(cfg.Serve.Addr) }()

	logger.Info("serving", "addr", cfg.Serve.Addr, "service", client.BaseURL(), "history", cfg.History.Enabled)

	select {
	case err := <-errCh:
		return err
	case <-cmd.Context().Done():
	}

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
