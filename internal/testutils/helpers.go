// Package testutils holds fixtures shared by package tests.
package testutils

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/mdsa"
	"github.com/aretw0/mdsa/pkg/adapters/memory"
	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/executor"
	"github.com/aretw0/mdsa/pkg/models"
	"github.com/aretw0/mdsa/pkg/rag"
)

// WriteConfig writes body as mdsa.yaml in a temporary directory and returns its path.
// It fails the test immediately on error.
func WriteConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mdsa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644), "Failed to write config")
	return path
}

// NewOrchestrator builds an orchestrator with an empty retrieval store and
// the given predefined domains registered. Extra options are applied last.
// It is closed when the test ends.
func NewOrchestrator(t *testing.T, domainIDs []string, opts ...mdsa.Option) *mdsa.Orchestrator {
	t.Helper()

	store, err := rag.New()
	require.NoError(t, err, "Failed to create retrieval store")
	t.Cleanup(func() { _ = store.Close() })

	o, err := mdsa.New(append([]mdsa.Option{mdsa.WithRAG(store)}, opts...)...)
	require.NoError(t, err, "Failed to create orchestrator")
	t.Cleanup(func() { _ = o.Close() })

	for _, id := range domainIDs {
		d, err := domain.Predefined(id)
		require.NoError(t, err)
		require.NoError(t, o.RegisterDomain(context.Background(), d))
	}
	return o
}

// NewExecutor returns an executor running on the in-memory model backend.
func NewExecutor(t *testing.T, backendOpts ...memory.BackendOption) *executor.Executor {
	t.Helper()
	mgr := models.NewManager(models.NewBackendSet(memory.NewBackend(backendOpts...)))
	t.Cleanup(mgr.Clear)
	return executor.New(mgr)
}
