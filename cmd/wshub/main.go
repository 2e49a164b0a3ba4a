package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cazayus/wshub/internal/infrastructure/config"
	"github.com/cazayus/wshub/internal/infrastructure/logging"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Flags override environment configuration
	port := flag.String("port", "", "Server port (overrides PORT)")
	host := flag.String("host", "", "Server host (overrides HOST)")
	wiring := flag.String("wiring", "", "Observer wiring file, .yaml or .toml (overrides WIRING_FILE)")
	dev := flag.Bool("dev", false, "Development mode (debug logs, console encoding)")
	dispose := flag.Bool("dispose", false, "Close evicted services implementing io.Closer")
	workspaces := flag.Int("workspaces", 1, "Demo workspaces to open at startup")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *wiring != "" {
		cfg.Wiring.File = *wiring
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}
	if *dispose {
		cfg.Registry.DisposeOnEvict = true
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}

	if code := finish(logger, run(cfg, logger, *workspaces)); code != 0 {
		os.Exit(code)
	}
}

// finish logs err and flushes the logger before main exits
func finish(logger *logging.Logger, err error) int {
	code := 0
	if err != nil {
		logger.Error("wshub stopped", zap.Error(err))
		code = 1
	}
	_ = logger.Sync()
	return code
}

func run(cfg *config.Config, logger *logging.Logger, workspaces int) error {
	h, err := newHost(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- h.server.Run()
	}()

	if _, err := h.openWorkspaces(ctx, workspaces); err != nil {
		logger.Warn("demo workspaces opened with failures", zap.Error(err))
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errChan:
		logger.Error("HTTP server failed", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := h.closeAll(shutdownCtx); err != nil {
		logger.Warn("workspaces closed with failures", zap.Error(err))
	}
	if serveErr != nil {
		return serveErr
	}
	return h.server.Shutdown(shutdownCtx)
}
