package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/apresai/quizzify/internal/config"
	"github.com/apresai/quizzify/internal/mcpserver"
	"github.com/apresai/quizzify/internal/observability"
)

var version = "dev"

func main() {
	logger := observability.InitLogger(os.Stderr, os.Getenv("QUIZZIFY_VERBOSE") != "")

	logger.Info("Quizzify MCP Server starting...", "version", version)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load("")
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	tp, err := observability.InitTracer(ctx, "quizzify-mcp", version, cfg.Env)
	if err != nil {
		logger.Warn("Failed to init tracer, continuing without tracing", "error", err)
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Error("Tracer shutdown error", "error", err)
			}
		}()
	}

	srv, err := mcpserver.New(ctx, cfg, version, logger)
	if err != nil {
		logger.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	if err := srv.Start(ctx); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}
