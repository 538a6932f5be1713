package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/mdsa/pkg/rag"
)

// KnowledgeOptions configures the rag add and search commands.
type KnowledgeOptions struct {
	ConfigPath string
	// Domain selects a local corpus. Empty targets the global corpus.
	Domain  string
	Content string
	Tags    []string
	TopK    int
	JSON    bool
	Debug   bool

	Output io.Writer
}

// AddKnowledge stores one document. It is only durable with redis or
// sqlite storage.
func AddKnowledge(opts KnowledgeOptions) error {
	return withKnowledge(opts, func(ctx context.Context, r *rag.DualRAG, w io.Writer) error {
		var (
			id  string
			err error
		)
		if opts.Domain == "" {
			id, err = r.AddToGlobal(ctx, opts.Content, nil, opts.Tags)
		} else {
			id, err = r.AddToLocal(ctx, opts.Domain, opts.Content, nil, opts.Tags)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(w, id)
		return nil
	})
}

// SearchKnowledge retrieves documents for a query.
func SearchKnowledge(opts KnowledgeOptions) error {
	return withKnowledge(opts, func(ctx context.Context, r *rag.DualRAG, w io.Writer) error {
		res, err := r.Retrieve(ctx, opts.Content, opts.Domain, rag.RetrieveOptions{
			TopK:      opts.TopK,
			Tags:      opts.Tags,
			SkipLocal: opts.Domain == "",
		})
		if err != nil {
			return err
		}
		if opts.JSON {
			return encodeJSON(w, res)
		}
		for _, d := range res.Documents() {
			fmt.Fprintf(w, "[%s] %s %s\n", d.Scope, d.ID, strings.TrimSpace(d.Content))
		}
		return nil
	})
}

func withKnowledge(opts KnowledgeOptions, fn func(context.Context, *rag.DualRAG, io.Writer) error) error {
	w := opts.Output
	if w == nil {
		w = os.Stdout
	}
	return withStack(PlanOptions{ConfigPath: opts.ConfigPath, Debug: opts.Debug, Output: w}, func(ctx context.Context, stack *Stack) error {
		r := stack.Orchestrator.RAG()
		if r == nil {
			return errors.New("retrieval is disabled (orchestrator.enable_rag)")
		}
		return fn(ctx, r, w)
	})
}
