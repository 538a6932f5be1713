package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/mdsa/internal/config"
	"github.com/aretw0/mdsa/internal/presentation/graph"
	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/reasoner"
	"github.com/aretw0/mdsa/pkg/router"
)

// PlanOptions configures the plan and classify commands.
type PlanOptions struct {
	ConfigPath string
	Query      string
	// Run executes the query and colors the graph with task outcomes.
	Run   bool
	JSON  bool
	Debug bool

	Output io.Writer
}

// PlanOutput is the JSON form of the plan command.
type PlanOutput struct {
	Complexity reasoner.ComplexityResult `json:"complexity"`
	Plan       reasoner.ReasoningResult  `json:"plan"`
	Result     *domain.Result            `json:"result,omitempty"`
}

// Plan decomposes a query and prints its task graph as Mermaid.
func Plan(opts PlanOptions) error {
	return withStack(opts, func(ctx context.Context, stack *Stack) error {
		orch := stack.Orchestrator
		cls := orch.Router().ClassifyDetailed(ctx, opts.Query)
		analyzer := reasoner.NewAnalyzer(reasoner.WithThreshold(stack.Config.Orchestrator.ComplexityThreshold))

		out := PlanOutput{
			Complexity: analyzer.Analyze(opts.Query, cls.Confidence, cls.Matched()),
			Plan:       orch.Planner().AnalyzeAndPlan(ctx, opts.Query, nil),
		}
		if !out.Plan.Success {
			return fmt.Errorf("planning failed: %s", out.Plan.Error)
		}

		var overlay *graph.PlanOverlay
		if opts.Run {
			res := orch.ProcessRequest(ctx, opts.Query, nil)
			out.Result = &res
			overlay = &graph.PlanOverlay{Results: res.Metadata.TaskResults}
		}

		if opts.JSON {
			return encodeJSON(opts.Output, out)
		}
		fmt.Fprint(opts.Output, graph.GenerateMermaid(out.Plan.ExecutionPlan, overlay))
		return nil
	})
}

// Classify prints the routing decision for a query.
func Classify(opts PlanOptions) error {
	return withStack(opts, func(ctx context.Context, stack *Stack) error {
		cls := stack.Orchestrator.Router().ClassifyDetailed(ctx, opts.Query)
		if opts.JSON {
			return encodeJSON(opts.Output, cls)
		}
		if cls.Domain == router.NoMatch {
			fmt.Fprintf(opts.Output, "no domain matched (confidence %.2f)\n", cls.Confidence)
			return nil
		}
		fmt.Fprintf(opts.Output, "%s %.2f (%s)\n", cls.Domain, cls.Confidence, cls.Method)
		return nil
	})
}

func withStack(opts PlanOptions, fn func(context.Context, *Stack) error) error {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	logger := createLogger("error", opts.Debug, false)

	ctx := NewSignalContext(context.Background())
	defer ctx.Cancel()

	stack, err := NewStack(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("error initializing orchestrator: %w", err)
	}
	defer stack.Close()
	return fn(ctx, stack)
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
