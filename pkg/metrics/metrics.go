// Package metrics provides Prometheus instrumentation for sendgate components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for sendgate components.
type Registry struct {
	// Rate gate metrics
	GateAdmissions  *prometheus.CounterVec
	GateStalls      *prometheus.CounterVec
	GateRejections  *prometheus.CounterVec
	GateWaitTime    *prometheus.HistogramVec
	GateWindowCount *prometheus.GaugeVec

	// Delivery metrics
	DeliveryAttempts    *prometheus.CounterVec
	DeliveryBounces     *prometheus.CounterVec
	DeliverySpamReports prometheus.Counter
	DeliveryPersists    *prometheus.CounterVec

	// Worker pool metrics
	WorkerPoolSize   *prometheus.GaugeVec
	WorkerPoolActive *prometheus.GaugeVec

	// Connection cap metrics
	ConcurrencyInUse   *prometheus.GaugeVec
	ConcurrencyWaiting *prometheus.GaugeVec
}

// DefaultRegistry is the default metrics registry used by sendgate components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithConfig(Config{Enabled: true, Registry: reg})
}

// NewRegistryWithConfig creates a registry honouring cfg.Namespace.
// A nil cfg.Registry registers with prometheus.DefaultRegisterer.
func NewRegistryWithConfig(cfg Config) *Registry {
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}

	factory := promauto.With(reg)

	return &Registry{
		GateAdmissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "gate",
				Name:      "admissions_total",
				Help:      "Total number of sends admitted by the rate gate",
			},
			[]string{"gate_name"},
		),

		GateStalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "gate",
				Name:      "stalls_total",
				Help:      "Total number of times a caller was stalled, by limiting window",
			},
			[]string{"gate_name", "window"},
		),

		GateRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "gate",
				Name:      "rejections_total",
				Help:      "Total number of non-blocking admissions refused, by limiting window",
			},
			[]string{"gate_name", "window"},
		),

		GateWaitTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: "gate",
				Name:      "wait_duration_seconds",
				Help:      "Time spent waiting for admission",
				Buckets:   []float64{.001, .01, .1, .5, 1, 2, 5, 30, 60, 300, 3600},
			},
			[]string{"gate_name"},
		),

		GateWindowCount: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "gate",
				Name:      "window_count",
				Help:      "Sends counted in the current window",
			},
			[]string{"gate_name", "window"},
		),

		DeliveryAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "delivery",
				Name:      "sent_total",
				Help:      "Total number of send attempts, by outcome",
			},
			[]string{"outcome"},
		),

		DeliveryBounces: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "delivery",
				Name:      "bounces_total",
				Help:      "Total number of recorded bounces, by bounce type",
			},
			[]string{"bounce_type"},
		),

		DeliverySpamReports: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "delivery",
				Name:      "spam_reports_total",
				Help:      "Total number of recorded spam reports",
			},
		),

		DeliveryPersists: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "delivery",
				Name:      "persists_total",
				Help:      "Total number of metrics snapshots persisted, by result",
			},
			[]string{"result"},
		),

		WorkerPoolSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "workerpool",
				Name:      "size",
				Help:      "Current worker pool size",
			},
			[]string{"pool_name"},
		),

		WorkerPoolActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "workerpool",
				Name:      "active_workers",
				Help:      "Number of active workers",
			},
			[]string{"pool_name"},
		),

		ConcurrencyInUse: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "concurrency",
				Name:      "in_use",
				Help:      "Number of permits currently held",
			},
			[]string{"limiter_name"},
		),

		ConcurrencyWaiting: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "concurrency",
				Name:      "waiting",
				Help:      "Number of callers blocked waiting for a permit",
			},
			[]string{"limiter_name"},
		),
	}
}
