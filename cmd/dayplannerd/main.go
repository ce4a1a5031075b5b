package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dayplanner/internal/api"
	"dayplanner/internal/catalog"
	"dayplanner/internal/config"
	"dayplanner/internal/logging"
	plannermcp "dayplanner/internal/mcp"
	"dayplanner/internal/notify"
	"dayplanner/internal/planner"
	"dayplanner/internal/store"
)

var version = "dev"

func main() {
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	baseCtx := context.Background()
	storeInst, err := store.Open(baseCtx, cfg.StateDir)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer storeInst.Close()

	pl, err := planner.New(storeInst, planner.Config{
		Options:      cfg.EngineOptions(),
		DefaultSleep: cfg.Schedule.DefaultSleep,
		CacheSize:    cfg.Schedule.CacheSize,
		Location:     cfg.Location(),
	}, buildNotifier(cfg, logger), logger)
	if err != nil {
		logger.Error("create planner", "err", err)
		os.Exit(1)
	}
	cat := catalog.New(storeInst, pl, logger)

	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	if err := pl.StartRefresh(ctx, cfg.Schedule.RefreshCron); err != nil {
		logger.Error("start daily refresh", "err", err)
		os.Exit(1)
	}

	mcpServer := plannermcp.NewMCPServer(cat, pl, logger, version)

	switch cfg.Server.Mode {
	case "http", "":
		runHTTPMode(cfg, cat, pl, mcpServer, logger, nil)
	case "mcp":
		runMCPMode(ctx, mcpServer, logger, cancel)
	case "both":
		mcpErr := make(chan error, 1)
		go func() {
			if err := mcpServer.Run(ctx); err != nil {
				mcpErr <- err
			}
		}()
		runHTTPMode(cfg, cat, pl, mcpServer, logger, mcpErr)
		cancel()
	default:
		logger.Error("invalid mode", "mode", cfg.Server.Mode, "valid", []string{"http", "mcp", "both"})
		os.Exit(1)
	}

	stopCtx := pl.StopRefresh()
	select {
	case <-stopCtx.Done():
	case <-time.After(cfg.ShutdownGrace):
		logger.Warn("daily refresh stop timed out")
	}
	logger.Info("shutdown complete")
}

func buildNotifier(cfg *config.Config, logger *slog.Logger) notify.Notifier {
	var notifiers []notify.Notifier
	if cfg.Notification.Bark.Enabled {
		bark, err := notify.NewBarkNotifier(cfg.Notification.Bark.URL)
		if err != nil {
			logger.Warn("bark notifier disabled", "err", err)
		} else {
			notifiers = append(notifiers, bark)
		}
	}
	if len(notifiers) == 0 {
		return notify.NoOpNotifier{}
	}
	return notify.NewMultiNotifier(notifiers...)
}

// runHTTPMode serves the API, with MCP mounted at /mcp, until a signal
// arrives or a server fails. mcpErr carries failures of a stdio MCP server
// running alongside.
func runHTTPMode(cfg *config.Config, cat *catalog.Catalog, pl *planner.Planner, mcpServer *plannermcp.MCPServer, logger *slog.Logger, mcpErr <-chan error) {
	server := api.NewServer(cfg.Server.Addr, cat, pl, logger, api.Options{
		AuthToken:   cfg.Server.AuthToken,
		MCPHandler:  mcpServer.HTTPHandler(),
		RefreshCron: cfg.Schedule.RefreshCron,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("received signal", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "err", err)
	case err := <-mcpErr:
		logger.Error("mcp server error", "err", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "err", err)
	}
}

// runMCPMode serves MCP on stdio. It returns when stdin closes or a signal
// arrives; the signal cancels ctx, which stops the pending stdin read.
func runMCPMode(ctx context.Context, mcpServer *plannermcp.MCPServer, logger *slog.Logger, cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case <-sigs:
			logger.Info("received signal, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := mcpServer.Run(ctx); err != nil {
		logger.Error("mcp server error", "err", err)
	}
}
