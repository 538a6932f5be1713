package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/mdsa/internal/config"
	httpAdapter "github.com/aretw0/mdsa/pkg/adapters/http"
	"github.com/aretw0/mdsa/pkg/domain"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions configures the HTTP server command.
type ServeOptions struct {
	ConfigPath string
	// Addr overrides server.addr when set.
	Addr  string
	Watch bool
	Debug bool
	JSON  bool
}

// Serve runs the HTTP API until SIGINT or SIGTERM.
func Serve(opts ServeOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}
	logger := createLogger(cfg.LogLevel, opts.Debug, opts.JSON)

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

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: httpAdapter.NewHandler(stack.Orchestrator,
			httpAdapter.WithSessions(stack.Sessions),
			httpAdapter.WithGatherer(stack.Registry),
			httpAdapter.WithLogger(logger),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if opts.Watch && opts.ConfigPath != "" {
		go func() {
			err := config.Watch(sigCtx, opts.ConfigPath, logger, func(next *config.Config) {
				stack.Reload(sigCtx, next)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Config watcher stopped", "err", err)
			}
		}()
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting MDSA Server", "addr", srv.Addr, "domains", len(stack.Orchestrator.Domains()))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-sigCtx.Done():
		logger.Info("Start shutdown", "signal", sigCtx.Signal())

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("error killing server: %w", err)
			}
		}
		logger.Info("MDSA Server stopped gracefully")
		return nil
	}
}

// Reload registers the domains of next that are not registered yet.
// Domains are immutable once registered, so changed or removed entries
// only produce a warning until restart.
func (s *Stack) Reload(ctx context.Context, next *config.Config) int {
	domains, err := next.ResolveDomains()
	if err != nil {
		s.logger.Warn("Reload skipped", "err", err)
		return 0
	}

	current := make(map[string]bool)
	for _, d := range s.Orchestrator.Domains() {
		current[d.ID] = true
	}

	added := 0
	for _, d := range domains {
		if current[d.ID] {
			delete(current, d.ID)
			continue
		}
		if err := s.Orchestrator.RegisterDomain(ctx, d); err != nil {
			s.logger.Error("Reload failed to register domain", "domain", d.ID, "err", err)
			continue
		}
		added++
	}
	for id := range current {
		s.logger.Warn("Domain removed from config stays registered until restart", "domain", id)
	}
	if added > 0 {
		s.logger.Info("Config reloaded", "added_domains", added)
	}
	return added
}
