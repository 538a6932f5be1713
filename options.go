package mdsa

import (
	"log/slog"

	"github.com/aretw0/mdsa/pkg/bus"
	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/executor"
	"github.com/aretw0/mdsa/pkg/ports"
	"github.com/aretw0/mdsa/pkg/rag"
	"github.com/aretw0/mdsa/pkg/reasoner"
	"github.com/aretw0/mdsa/pkg/registry"
	"github.com/aretw0/mdsa/pkg/router"
)

// Option defines a functional option for configuring the Orchestrator.
type Option func(*Orchestrator)

// WithRouter injects a router. By default a router with the hashing
// embedder is created and owned by the orchestrator.
func WithRouter(r *router.Router) Option {
	return func(o *Orchestrator) {
		o.router = r
	}
}

// WithEmbedder sets the embedder of the default router.
func WithEmbedder(e ports.Embedder) Option {
	return func(o *Orchestrator) {
		o.embedder = e
	}
}

// WithExecutor enables domain model execution. Without it the orchestrator
// only routes requests.
func WithExecutor(e *executor.Executor) Option {
	return func(o *Orchestrator) {
		o.executor = e
	}
}

// WithRAG enables retrieval-augmented prompts.
func WithRAG(r *rag.DualRAG) Option {
	return func(o *Orchestrator) {
		o.rag = r
	}
}

// WithPlanner replaces the task planner used for complex queries.
func WithPlanner(p *reasoner.Planner) Option {
	return func(o *Orchestrator) {
		o.planner = p
	}
}

// WithAnalyzer replaces the complexity analyzer.
func WithAnalyzer(a *reasoner.Analyzer) Option {
	return func(o *Orchestrator) {
		o.analyzer = a
	}
}

// WithReasoning toggles the reasoning path (default: enabled).
func WithReasoning(enabled bool) Option {
	return func(o *Orchestrator) {
		o.reasoning = enabled
	}
}

// WithConfidenceThreshold sets the routing confidence below which requests
// are escalated (default 0.80).
func WithConfidenceThreshold(t float64) Option {
	return func(o *Orchestrator) {
		o.threshold = t
	}
}

// WithTopK sets how many documents each RAG tier contributes to a prompt.
func WithTopK(k int) Option {
	return func(o *Orchestrator) {
		if k > 0 {
			o.topK = k
		}
	}
}

// WithTools sets the registry used for the tools a planned task needs.
// Without one, tool names are recorded on task results but nothing runs.
func WithTools(r *registry.Registry) Option {
	return func(o *Orchestrator) {
		o.tools = r
	}
}

// WithMaxQueryBytes rejects larger queries. Zero disables the limit.
func WithMaxQueryBytes(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.maxQuery = n
		}
	}
}

// WithBus injects the message bus. By default each orchestrator owns one.
func WithBus(b *bus.Bus) Option {
	return func(o *Orchestrator) {
		o.bus = b
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *Orchestrator) {
		o.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}
