package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/mdsa"
	"github.com/aretw0/mdsa/pkg/rag"
	"github.com/aretw0/mdsa/pkg/registry"
)

// builtinTools registers the tools a planned task may name. The orchestrator
// is resolved on call because it is built after the registry.
func builtinTools(orch func() *mdsa.Orchestrator) *registry.Registry {
	r := registry.NewRegistry()

	// retrieve returns the knowledge documents relevant to the task.
	r.Register("retrieve", func(ctx context.Context, args map[string]any) (any, error) {
		o := orch()
		if o == nil || o.RAG() == nil {
			return nil, errors.New("retrieval is disabled")
		}
		query, _ := args["query"].(string)
		domainID, _ := args["domain"].(string)
		res, err := o.RAG().Retrieve(ctx, query, domainID, rag.RetrieveOptions{SkipLocal: domainID == ""})
		if err != nil {
			return nil, err
		}
		var contents []string
		for _, d := range res.Documents() {
			contents = append(contents, strings.TrimSpace(d.Content))
		}
		if len(contents) == 0 {
			return "no documents found", nil
		}
		return strings.Join(contents, " | "), nil
	})

	// classify reports the routing decision for the task query.
	r.Register("classify", func(ctx context.Context, args map[string]any) (any, error) {
		o := orch()
		if o == nil {
			return nil, errors.New("orchestrator not ready")
		}
		query, _ := args["query"].(string)
		cls := o.Router().ClassifyDetailed(ctx, query)
		return fmt.Sprintf("%s (%.2f)", cls.Domain, cls.Confidence), nil
	})
	return r
}
