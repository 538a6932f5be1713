package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/mdsa/pkg/domain"
)

const namespace = "mdsa"

// Metrics holds the Prometheus collectors fed by lifecycle hooks.
type Metrics struct {
	Requests         *prometheus.CounterVec
	RequestLatency   *prometheus.HistogramVec
	StateTransitions *prometheus.CounterVec
	ModelLoads       *prometheus.CounterVec
	ModelLoadSeconds prometheus.Histogram
	ModelEvictions   prometheus.Counter
	ModelsResident   prometheus.Gauge
	RetrievalLatency prometheus.Histogram
	RetrievedDocs    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg (skipped when nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Processed requests by status and domain.",
		}, []string{"status", "domain", "reasoning"}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end request latency.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"status"}),
		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Workflow state transitions by target state.",
		}, []string{"to", "forced"}),
		ModelLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_loads_total",
			Help:      "Model load attempts by outcome.",
		}, []string{"model", "result"}),
		ModelLoadSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_load_duration_seconds",
			Help:      "Time spent loading models.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		ModelEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_evictions_total",
			Help:      "Models evicted from the registry.",
		}),
		ModelsResident: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "models_resident",
			Help:      "Models currently loaded.",
		}),
		RetrievalLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "DualRAG lookup latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		RetrievedDocs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieved_documents_total",
			Help:      "Documents returned by retrieval, by tier.",
		}, []string{"tier"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Requests, m.RequestLatency, m.StateTransitions,
			m.ModelLoads, m.ModelLoadSeconds, m.ModelEvictions, m.ModelsResident,
			m.RetrievalLatency, m.RetrievedDocs,
		)
	}
	return m
}

// Hooks returns lifecycle hooks recording into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateChange: func(_ context.Context, e *domain.StateEvent) {
			m.StateTransitions.WithLabelValues(string(e.To), boolLabel(e.Forced)).Inc()
		},
		OnRequestComplete: func(_ context.Context, e *domain.RequestEvent) {
			m.Requests.WithLabelValues(string(e.Status), e.Domain, boolLabel(e.ReasoningUsed)).Inc()
			m.RequestLatency.WithLabelValues(string(e.Status)).Observe(e.LatencyMS / 1000)
		},
		OnModelLoad: func(_ context.Context, e *domain.ModelEvent) {
			if e.Err != nil {
				m.ModelLoads.WithLabelValues(e.ModelID, "error").Inc()
				return
			}
			m.ModelLoads.WithLabelValues(e.ModelID, "ok").Inc()
			m.ModelLoadSeconds.Observe(e.Duration / 1000)
			m.ModelsResident.Inc()
		},
		OnModelEvict: func(_ context.Context, _ *domain.ModelEvent) {
			m.ModelEvictions.Inc()
			m.ModelsResident.Dec()
		},
		OnRetrieve: func(_ context.Context, e *domain.RetrievalEvent) {
			m.RetrievalLatency.Observe(e.LatencyMS / 1000)
			m.RetrievedDocs.WithLabelValues("local").Add(float64(e.Local))
			m.RetrievedDocs.WithLabelValues("global").Add(float64(e.Global))
		},
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
