package window

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/sendgate/pkg/metrics"
)

// MetricsGate wraps a Gate with Prometheus metrics collection.
type MetricsGate struct {
	gate     *gate
	name     string
	registry *metrics.Registry
	enabled  bool
}

// NewWithMetrics creates a gate with metrics recorded in a private registry.
func NewWithMetrics(config Config, name string) (*MetricsGate, error) {
	return NewWithConfigAndMetrics(config, name, metrics.Config{
		Enabled:  true,
		Registry: prometheus.NewRegistry(),
	})
}

// NewWithConfigAndMetrics creates a gate with custom config and metrics.
func NewWithConfigAndMetrics(config Config, name string, metricsConfig metrics.Config) (*MetricsGate, error) {
	base, err := newGate(config)
	if err != nil {
		return nil, err
	}

	mg := &MetricsGate{
		gate: base,
		name: name,
	}
	if err := mg.EnableMetrics(metricsConfig); err != nil {
		return nil, err
	}

	base.onAdmit = mg.recordAdmit
	base.onStall = mg.recordStall
	base.onReject = mg.recordReject

	return mg, nil
}

// NewWithRegistry creates a gate recording into an existing registry, so
// several components can share one Prometheus registerer.
func NewWithRegistry(config Config, name string, registry *metrics.Registry) (*MetricsGate, error) {
	base, err := newGate(config)
	if err != nil {
		return nil, err
	}

	mg := &MetricsGate{
		gate:     base,
		name:     name,
		registry: registry,
		enabled:  registry != nil,
	}
	base.onAdmit = mg.recordAdmit
	base.onStall = mg.recordStall
	base.onReject = mg.recordReject

	return mg, nil
}

// Admit blocks until the send may proceed.
func (mg *MetricsGate) Admit() {
	_ = mg.Wait(context.Background())
}

// Wait blocks until the send may proceed or ctx is done.
func (mg *MetricsGate) Wait(ctx context.Context) error {
	start := mg.gate.clock.Now()
	err := mg.gate.Wait(ctx)

	if mg.enabled && err == nil {
		waited := mg.gate.clock.Now().Sub(start)
		mg.registry.GateWaitTime.WithLabelValues(mg.name).Observe(waited.Seconds())
	}
	return err
}

// TryAdmit admits the send only if no ceiling is reached.
func (mg *MetricsGate) TryAdmit() error {
	return mg.gate.TryAdmit()
}

// Counts returns the current counters.
func (mg *MetricsGate) Counts() Counts {
	return mg.gate.Counts()
}

// Limits returns the configured ceilings.
func (mg *MetricsGate) Limits() Limits {
	return mg.gate.Limits()
}

// EnableMetrics enables metrics collection. Without a Registry in config the
// gate records into metrics.DefaultRegistry.
func (mg *MetricsGate) EnableMetrics(config metrics.Config) error {
	mg.enabled = config.Enabled
	if !config.Enabled {
		return nil
	}

	switch {
	case config.Registry != nil:
		mg.registry = metrics.NewRegistryWithConfig(config)
	case mg.registry == nil:
		mg.registry = metrics.DefaultRegistry
	}
	return nil
}

// DisableMetrics disables metrics collection.
func (mg *MetricsGate) DisableMetrics() {
	mg.enabled = false
}

// MetricsEnabled returns true if metrics are currently enabled.
func (mg *MetricsGate) MetricsEnabled() bool {
	return mg.enabled
}

func (mg *MetricsGate) recordAdmit(c Counts) {
	if !mg.enabled {
		return
	}
	mg.registry.GateAdmissions.WithLabelValues(mg.name).Inc()
	mg.registry.GateWindowCount.WithLabelValues(mg.name, WindowSecond.String()).Set(float64(c.Second))
	mg.registry.GateWindowCount.WithLabelValues(mg.name, WindowHour.String()).Set(float64(c.Hour))
	mg.registry.GateWindowCount.WithLabelValues(mg.name, WindowDay.String()).Set(float64(c.Day))
}

func (mg *MetricsGate) recordStall(w Window, _ time.Duration) {
	if !mg.enabled {
		return
	}
	mg.registry.GateStalls.WithLabelValues(mg.name, w.String()).Inc()
}

func (mg *MetricsGate) recordReject(w Window) {
	if !mg.enabled {
		return
	}
	mg.registry.GateRejections.WithLabelValues(mg.name, w.String()).Inc()
}

var (
	_ Gate                   = (*MetricsGate)(nil)
	_ metrics.Instrumentable = (*MetricsGate)(nil)
)
