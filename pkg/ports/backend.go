package ports

import (
	"context"

	"github.com/aretw0/mdsa/pkg/domain"
)

// GenerateRequest carries the prompt and sampling settings for one generation.
type GenerateRequest struct {
	Prompt      string
	System      string
	MaxTokens   int
	Temperature float64
}

// GenerateResponse is the raw output of a generation.
type GenerateResponse struct {
	Text            string
	TokensGenerated int
}

// LoadedModel is a resident model handle owned by the model registry.
type LoadedModel interface {
	// Generate runs one completion. It must honor ctx cancellation where the runtime allows it.
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error)

	// MemoryMB reports the estimated resident footprint.
	MemoryMB() float64

	// Close releases the model. It is called once, on eviction or unload.
	Close() error
}

// ModelBackend loads models for one runtime family (in-process, Ollama, ...).
type ModelBackend interface {
	// Kind names the backend family this implementation serves.
	Kind() domain.BackendKind

	// Load makes the model described by cfg ready for generation.
	Load(ctx context.Context, cfg domain.ModelConfig) (LoadedModel, error)
}
