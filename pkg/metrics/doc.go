// Package metrics provides Prometheus instrumentation for sendgate components.
//
// # Quick Start
//
// Components that run together share one Registry:
//
//	reg := prometheus.NewRegistry()
//	shared := metrics.NewRegistry(reg)
//
//	gate, err := window.NewWithRegistry(window.Config{}, "smtp", shared)
//	tracker := delivery.NewWithConfig(delivery.Config{Metrics: shared})
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
//
// # Available Metrics
//
// Rate gate:
//
//   - sendgate_gate_admissions_total: sends admitted
//   - sendgate_gate_stalls_total: callers stalled, labelled by window
//   - sendgate_gate_rejections_total: non-blocking admissions refused
//   - sendgate_gate_wait_duration_seconds: time spent waiting for admission
//   - sendgate_gate_window_count: sends counted in the current window
//
// Delivery:
//
//   - sendgate_delivery_sent_total: send attempts labelled by outcome
//   - sendgate_delivery_bounces_total: bounces labelled by type
//   - sendgate_delivery_spam_reports_total: spam reports
//   - sendgate_delivery_persists_total: snapshot persists labelled by result
//
// Worker pool:
//
//   - sendgate_workerpool_size, sendgate_workerpool_active_workers
package metrics
