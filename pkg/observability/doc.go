/*
Package observability turns engine lifecycle events into Prometheus metrics.

Metrics are registered on a caller supplied registerer so tests and embedders can
keep them isolated from the global default registry:

	reg := prometheus.NewRegistry()
	m := observability.New(reg)
	mgr := session.NewManager(sessions, docs, session.WithLifecycleHooks(m.Hooks()))
*/
package observability
