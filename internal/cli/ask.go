package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/mdsa"
	"github.com/aretw0/mdsa/internal/config"
	"github.com/aretw0/mdsa/internal/presentation/tui"
	"github.com/aretw0/mdsa/pkg/domain"
)

// AskOptions configures the ask command.
type AskOptions struct {
	ConfigPath string
	// Query is answered once. Empty starts an interactive session.
	Query    string
	Context  string // Raw JSON string
	Domain   string
	JSON     bool
	Headless bool
	Debug    bool
	Quiet    bool

	Input  io.Reader
	Output io.Writer
}

// Ask answers one query or runs an interactive session on stdin.
func Ask(opts AskOptions) error {
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	reqCtx, err := parseContext(opts.Context)
	if err != nil {
		return err
	}
	if opts.Domain != "" {
		reqCtx[domain.KeyForceDomain] = opts.Domain
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	logger := createLogger(cfg.LogLevel, opts.Debug, false)
	if !opts.Debug && opts.Query == "" {
		// Keep the interactive prompt readable.
		logger = createLogger("error", false, false)
	}

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	var hooks []domain.LifecycleHooks
	if opts.Debug {
		hooks = append(hooks, createDebugHooks(logger))
	}
	stack, err := NewStack(sigCtx, cfg, logger, hooks...)
	if err != nil {
		return fmt.Errorf("error initializing orchestrator: %w", err)
	}
	defer stack.Close()

	if opts.Query != "" {
		res := stack.Orchestrator.ProcessRequest(sigCtx, opts.Query, reqCtx)
		return writeResult(opts.Output, res, opts.JSON)
	}

	if !opts.Headless && !opts.Quiet {
		tui.PrintBanner(opts.Output, strings.TrimSpace(mdsa.Version))
	}
	r := mdsa.NewRunner()
	r.Input = NewInterruptibleReader(opts.Input, sigCtx.Done())
	r.Output = opts.Output
	r.Headless = opts.Headless
	r.Context = reqCtx
	if !opts.Headless && tui.IsTerminal() {
		r.Renderer = tui.NewRenderer()
	}

	err = r.Run(sigCtx, stack.Orchestrator)
	logCompletion(err, opts.Quiet || opts.Headless, sigCtx.Signal())
	return handleExecutionError(err)
}

func parseContext(raw string) (map[string]any, error) {
	reqCtx := make(map[string]any)
	if strings.TrimSpace(raw) == "" {
		return reqCtx, nil
	}
	if err := json.Unmarshal([]byte(raw), &reqCtx); err != nil {
		return nil, fmt.Errorf("error parsing --context JSON: %w", err)
	}
	return reqCtx, nil
}

func writeResult(w io.Writer, res domain.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintf(w, "[%s] %s\n", res.Status, res.Message)
	if res.Response != "" {
		fmt.Fprintln(w, strings.TrimSpace(res.Response))
	}
	meta := res.Metadata
	if meta.Domain != "" {
		fmt.Fprintf(w, "domain=%s confidence=%.2f latency=%.1fms\n", meta.Domain, meta.Confidence, meta.LatencyMS)
	}
	return nil
}
