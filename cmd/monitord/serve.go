package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flitsinc/taskplex-monitor/internal/api"
	"github.com/flitsinc/taskplex-monitor/internal/config"
	"github.com/flitsinc/taskplex-monitor/internal/eventbus"
	"github.com/flitsinc/taskplex-monitor/internal/monitor"
	"github.com/flitsinc/taskplex-monitor/internal/state"
	"github.com/flitsinc/taskplex-monitor/internal/telemetry"
	"github.com/flitsinc/taskplex-monitor/internal/web"
)

func newServeCmd() *cobra.Command {
	var addr, dbPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the monitor HTTP and websocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTPAddr = addr
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			level, _ := config.ParseLevel(cfg.LogLevel)
			logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfg, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides MONITOR_HTTP_ADDR)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides MONITOR_DB_PATH)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	db, err := state.Open(cfg.DBPath, cfg.BusyTimeout)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	bus := eventbus.NewBus(eventbus.WithBuffer(cfg.ObserverBuffer), eventbus.WithLogger(logger))
	svc := monitor.New(db, monitor.Options{Bus: bus, Logger: logger})

	apiServer := &api.Server{
		Monitor: svc,
		Logger:  logger,
		Info: api.DiagnosticsInfo{
			HTTPAddr: cfg.HTTPAddr,
			DBPath:   cfg.DBPath,
			Version:  version,
		},
	}
	if cfg.ServeClient {
		apiServer.Static = (&web.Server{Dir: cfg.WebDir}).Handler()
		apiServer.Info.WebDir = cfg.WebDir
	}

	listener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()
	httpServer := &http.Server{
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return serverCtx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("monitord listening", "addr", listener.Addr().String(), "db", cfg.DBPath, "version", version)
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("monitord shutting down")
	// Live streams hold requests open; cancelling their base context ends them.
	serverCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
		_ = httpServer.Close()
	}
	return nil
}
