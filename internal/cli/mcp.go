package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/aretw0/mdsa/internal/config"
	"github.com/aretw0/mdsa/pkg/adapters/mcp"
)

// MCPOptions configures the MCP server command.
type MCPOptions struct {
	ConfigPath string
	Transport  string
	Port       int
	Debug      bool
}

// ServeMCP exposes the orchestrator as MCP tools over stdio or SSE.
func ServeMCP(opts MCPOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	// Logs always go to Stderr so they never corrupt JSON-RPC on Stdout.
	logger := createLogger(cfg.LogLevel, opts.Debug, false)
	log.SetOutput(os.Stderr)

	ctx := NewSignalContext(context.Background())
	defer ctx.Cancel()

	stack, err := NewStack(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("error initializing orchestrator: %w", err)
	}
	defer stack.Close()

	srv := mcp.NewServer(stack.Orchestrator, mcp.WithLogger(logger))

	switch opts.Transport {
	case "", "stdio":
		logger.Info("Starting MDSA MCP Server (Stdio)...")
		return srv.ServeStdio()
	case "sse":
		logger.Info("Starting MDSA MCP Server (SSE)", "port", opts.Port)
		if err := srv.ServeSSE(ctx, opts.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		logger.Info("MCP Server stopped gracefully")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", opts.Transport)
	}
}
