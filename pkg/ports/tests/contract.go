package tests

import (
	"context"
	"testing"

	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/ports"
)

// ModelBackendContractTest is a reusable test suite that verifies if an adapter complies with ports.ModelBackend.
// cfg must describe a model the backend can load in the test environment.
func ModelBackendContractTest(t *testing.T, backend ports.ModelBackend, cfg domain.ModelConfig) {
	t.Helper()
	ctx := context.Background()

	if backend.Kind() != cfg.Backend {
		t.Fatalf("backend kind %q does not serve config backend %q", backend.Kind(), cfg.Backend)
	}

	model, err := backend.Load(ctx, cfg)
	if err != nil {
		t.Fatalf("unexpected error loading %s: %v", cfg.Name, err)
	}
	defer func() {
		if err := model.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	}()

	t.Run("MemoryFootprint", func(t *testing.T) {
		if model.MemoryMB() < 0 {
			t.Errorf("negative memory footprint %f", model.MemoryMB())
		}
	})

	t.Run("Generate", func(t *testing.T) {
		resp, err := model.Generate(ctx, ports.GenerateRequest{Prompt: "Say hello", MaxTokens: 32})
		if err != nil {
			t.Fatalf("unexpected error generating: %v", err)
		}
		if resp.Text == "" {
			t.Error("expected non-empty generation")
		}
		if resp.TokensGenerated <= 0 {
			t.Errorf("expected positive token count, got %d", resp.TokensGenerated)
		}
	})

	t.Run("Generate_Canceled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := model.Generate(cctx, ports.GenerateRequest{Prompt: "x"}); err == nil {
			t.Error("expected error for canceled context, got nil")
		}
	})
}
