package mdsa

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/mdsa/pkg/domain"
)

// Runner is an interactive loop that reads one query per line and prints
// the orchestrator's answer. It keeps the conversation as chat history.
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Headless bool
	Renderer ContentRenderer
	// Context is merged into every request context.
	Context map[string]any
}

// ContentRenderer transforms a response before it is printed
// (for example markdown to ANSI).
type ContentRenderer func(string) (string, error)

// NewRunner creates a Runner. Input and Output must be set before Run.
func NewRunner() *Runner {
	return &Runner{}
}

// Run processes queries until EOF, "exit" or "quit", or ctx is done.
func (r *Runner) Run(ctx context.Context, o *Orchestrator) error {
	if r.Input == nil {
		return fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	lineReader := bufio.NewReader(r.Input)
	writer := r.Output

	if !r.Headless {
		fmt.Fprintln(writer, "--- MDSA (Runner) ---")
	}

	var history []map[string]any
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !r.Headless {
			fmt.Fprint(writer, "> ")
		}
		text, err := lineReader.ReadString('\n')
		input := strings.TrimSpace(text)
		if err != nil && err != io.EOF {
			return fmt.Errorf("input error: %w", err)
		}
		if input == "exit" || input == "quit" {
			if !r.Headless {
				fmt.Fprintln(writer, "Bye!")
			}
			return nil
		}
		if input != "" {
			reqCtx := make(map[string]any, len(r.Context)+1)
			for k, v := range r.Context {
				reqCtx[k] = v
			}
			if len(history) > 0 {
				reqCtx[domain.KeyHistory] = history
			}

			res := o.ProcessRequest(ctx, input, reqCtx)
			fmt.Fprintln(writer, strings.TrimSpace(r.render(res)))

			if res.Response != "" {
				history = append(history,
					map[string]any{"role": "user", "content": input},
					map[string]any{"role": "assistant", "content": res.Response},
				)
			}
		}
		if err == io.EOF {
			return nil
		}
	}
}

func (r *Runner) render(res domain.Result) string {
	var out string
	switch res.Status {
	case domain.StatusSuccess:
		out = res.Response
		if out == "" {
			out = res.Message
		}
	case domain.StatusEscalated:
		out = fmt.Sprintf("%s (domain=%s confidence=%.2f)", res.Message, res.Metadata.Domain, res.Metadata.Confidence)
	default:
		out = "error: " + res.Message
	}
	if r.Renderer != nil {
		if rendered, err := r.Renderer(out); err == nil {
			out = rendered
		}
	}
	return out
}
