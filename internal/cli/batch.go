package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/executor"
	"github.com/aretw0/mdsa/pkg/router"
)

// BatchOptions configures the batch command.
type BatchOptions struct {
	ConfigPath string
	// Path holds one query per line. "-" reads stdin.
	Path  string
	Debug bool

	Output io.Writer
}

// BatchItem is one line of batch output.
type BatchItem struct {
	Query  string                 `json:"query"`
	Result domain.ExecutionResult `json:"result"`
}

// BatchReport is the JSON document printed by the batch command.
type BatchReport struct {
	Items []BatchItem         `json:"items"`
	Stats executor.AsyncStats `json:"stats"`
}

// Batch classifies every query of a file and executes them concurrently,
// bounded by models.max_concurrent. Queries routed below the confidence
// threshold are reported as escalated without running a model.
func Batch(opts BatchOptions) error {
	queries, err := readQueries(opts.Path)
	if err != nil {
		return err
	}
	return withStack(PlanOptions{ConfigPath: opts.ConfigPath, Debug: opts.Debug, Output: opts.Output}, func(ctx context.Context, stack *Stack) error {
		if stack.Async == nil {
			return errors.New("batch needs models.execute enabled")
		}
		report := RunBatch(ctx, stack, queries)
		w := opts.Output
		if w == nil {
			w = os.Stdout
		}
		return encodeJSON(w, report)
	})
}

// RunBatch routes and executes queries, keeping their order.
func RunBatch(ctx context.Context, stack *Stack, queries []string) BatchReport {
	orch := stack.Orchestrator
	items := make([]BatchItem, len(queries))
	var reqs []executor.Request
	var slots []int

	threshold := stack.Config.Orchestrator.ConfidenceThreshold
	for i, q := range queries {
		items[i].Query = q
		cls := orch.Router().ClassifyDetailed(ctx, q)
		d, ok := orch.Domain(cls.Domain)
		if cls.Domain == router.NoMatch || !ok || cls.Confidence < threshold {
			items[i].Result = domain.ExecutionResult{
				Status:     domain.StatusEscalated,
				Domain:     cls.Domain,
				Confidence: cls.Confidence,
				Error:      "confidence below threshold",
			}
			continue
		}
		reqs = append(reqs, executor.Request{
			Query:   q,
			Domain:  d,
			Options: executor.Options{Confidence: cls.Confidence},
		})
		slots = append(slots, i)
	}

	for j, res := range stack.Async.ExecuteBatch(ctx, reqs) {
		items[slots[j]].Result = res
	}
	return BatchReport{Items: items, Stats: stack.Async.Stats()}
}

func readQueries(path string) ([]string, error) {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open queries: %w", err)
		}
		defer f.Close()
		r = f
	}

	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}
