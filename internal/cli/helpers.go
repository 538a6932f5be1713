package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aretw0/mdsa/internal/logging"
	"github.com/aretw0/mdsa/pkg/domain"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
				// Context cancelled elsewhere
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// createLogger configures the application logger.
// It writes to Stderr (to separate from Stdout answers and the MCP stdio stream).
// Debug overrides the configured level.
func createLogger(level string, debug, asJSON bool) *slog.Logger {
	lvl := logging.ParseLevel(level)
	if debug {
		lvl = slog.LevelDebug
	}
	return logging.NewWithWriter(os.Stderr, lvl, asJSON)
}

// printSystemMessage prints a standardized system message to stdout.
func printSystemMessage(format string, args ...any) {
	fmt.Printf(">>> %s\n", fmt.Sprintf(format, args...))
}

func createDebugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateChange: func(ctx context.Context, e *domain.StateEvent) {
			logger.Debug("State Change", "correlation_id", e.CorrelationID, "from", e.From, "to", e.To, "forced", e.Forced)
		},
		OnRequestComplete: func(ctx context.Context, e *domain.RequestEvent) {
			logger.Debug("Request Complete", "correlation_id", e.CorrelationID, "status", e.Status, "domain", e.Domain, "latency_ms", e.LatencyMS)
		},
		OnModelLoad: func(ctx context.Context, e *domain.ModelEvent) {
			if e.Err != nil {
				logger.Debug("Model Load (Error)", "model", e.ModelID, "err", e.Err)
			} else {
				logger.Debug("Model Load (Success)", "model", e.ModelID, "memory_mb", e.MemoryMB, "duration_ms", e.Duration)
			}
		},
		OnModelEvict: func(ctx context.Context, e *domain.ModelEvent) {
			logger.Debug("Model Evict", "model", e.ModelID)
		},
		OnRetrieve: func(ctx context.Context, e *domain.RetrievalEvent) {
			logger.Debug("Retrieve", "domain", e.DomainID, "local", e.Local, "global", e.Global)
		},
	}
}

var errInterrupted = errors.New("interrupted")

// InterruptibleReader wraps an io.Reader (like os.Stdin) and checks for a cancellation signal.
type InterruptibleReader struct {
	base   io.Reader
	cancel <-chan struct{}
}

func NewInterruptibleReader(base io.Reader, cancel <-chan struct{}) *InterruptibleReader {
	return &InterruptibleReader{
		base:   base,
		cancel: cancel,
	}
}

func (r *InterruptibleReader) Read(p []byte) (n int, err error) {
	// Check before blocking
	select {
	case <-r.cancel:
		return 0, errInterrupted
	default:
	}

	// Read (This blocks!)
	n, err = r.base.Read(p)

	// Check after returning
	select {
	case <-r.cancel:
		return 0, errInterrupted
	default:
	}
	return n, err
}

func isInterrupted(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, errInterrupted) ||
		errors.Is(err, io.EOF)
}

func handleExecutionError(err error) error {
	if err == nil {
		return nil
	}
	if isInterrupted(err) {
		return nil // Exit 0 for interruptions
	}
	return err
}

func logCompletion(err error, quiet bool, sig os.Signal) {
	if quiet || !isInterrupted(err) {
		return
	}
	switch {
	case sig == os.Interrupt:
		fmt.Printf("[CTRL+C]\n")
		printSystemMessage("Interrupted.")
	case sig != nil:
		fmt.Printf("\n")
		printSystemMessage("Terminated.")
	}
}
