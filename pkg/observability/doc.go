/*
Package observability turns orchestrator lifecycle events into Prometheus
metrics and lets several LifecycleHooks observe the same events.

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := observability.Combine(metrics.Hooks(), auditHooks)
	o, _ := mdsa.New(mdsa.WithLifecycleHooks(hooks))
*/
package observability
