package observability_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/observability"
)

func TestMetrics_RecordsHookEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	h := m.Hooks()
	ctx := context.Background()

	h.OnRequestComplete(ctx, &domain.RequestEvent{Status: domain.StatusSuccess, Domain: "finance", LatencyMS: 12})
	h.OnRequestComplete(ctx, &domain.RequestEvent{Status: domain.StatusEscalated, Domain: "finance", LatencyMS: 3})
	h.OnStateChange(ctx, &domain.StateEvent{To: domain.StateReturn, Forced: true})
	h.OnModelLoad(ctx, &domain.ModelEvent{ModelID: "gpt2", Duration: 40})
	h.OnModelLoad(ctx, &domain.ModelEvent{ModelID: "broken", Err: assert.AnError})
	h.OnModelEvict(ctx, &domain.ModelEvent{ModelID: "gpt2"})
	h.OnRetrieve(ctx, &domain.RetrievalEvent{Local: 2, Global: 1, LatencyMS: 1})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("success", "finance", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("escalated", "finance", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StateTransitions.WithLabelValues("return", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelLoads.WithLabelValues("gpt2", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelLoads.WithLabelValues("broken", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelEvictions))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ModelsResident))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RetrievedDocs.WithLabelValues("local")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestCombine_FansOut(t *testing.T) {
	var a, b int
	hooks := observability.Combine(
		domain.LifecycleHooks{OnStateChange: func(context.Context, *domain.StateEvent) { a++ }},
		domain.LifecycleHooks{OnStateChange: func(context.Context, *domain.StateEvent) { b++ }},
		domain.LifecycleHooks{},
	)

	hooks.OnStateChange(context.Background(), &domain.StateEvent{To: domain.StateClassify})
	hooks.OnRetrieve(context.Background(), &domain.RetrievalEvent{})

	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}
