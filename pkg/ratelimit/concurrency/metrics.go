package concurrency

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/sendgate/pkg/metrics"
)

// MetricsLimiter wraps a Limiter and mirrors its held and waiting permits
// into Prometheus gauges.
type MetricsLimiter struct {
	limiter Limiter
	inUse   prometheus.Gauge
	waiting prometheus.Gauge
}

// NewWithMetrics creates a limiter with metrics recorded in a private registry.
func NewWithMetrics(capacity int, name string) (*MetricsLimiter, error) {
	return NewWithRegistry(capacity, name, metrics.NewRegistry(prometheus.NewRegistry()))
}

// NewWithRegistry creates a limiter recording into registry under name.
// A nil registry uses metrics.DefaultRegistry.
func NewWithRegistry(capacity int, name string, registry *metrics.Registry) (*MetricsLimiter, error) {
	base, err := NewSafe(capacity)
	if err != nil {
		return nil, err
	}
	if registry == nil {
		registry = metrics.DefaultRegistry
	}

	ml := &MetricsLimiter{
		limiter: base,
		inUse:   registry.ConcurrencyInUse.WithLabelValues(name),
		waiting: registry.ConcurrencyWaiting.WithLabelValues(name),
	}
	ml.inUse.Set(0)
	ml.waiting.Set(0)
	return ml, nil
}

// TryAcquire takes a permit if one is free.
func (ml *MetricsLimiter) TryAcquire() bool {
	if !ml.limiter.TryAcquire() {
		return false
	}
	ml.inUse.Inc()
	return true
}

// Acquire blocks until a permit is free or ctx is done.
func (ml *MetricsLimiter) Acquire(ctx context.Context) error {
	if ml.TryAcquire() {
		return nil
	}

	ml.waiting.Inc()
	err := ml.limiter.Acquire(ctx)
	ml.waiting.Dec()
	if err != nil {
		return err
	}
	ml.inUse.Inc()
	return nil
}

// Release returns a permit.
func (ml *MetricsLimiter) Release() {
	ml.limiter.Release()
	ml.inUse.Dec()
}

// Capacity returns the maximum number of permits.
func (ml *MetricsLimiter) Capacity() int {
	return ml.limiter.Capacity()
}

// InUse returns the number of permits currently held.
func (ml *MetricsLimiter) InUse() int {
	return ml.limiter.InUse()
}

// Waiting returns the number of blocked Acquire calls.
func (ml *MetricsLimiter) Waiting() int {
	return ml.limiter.Waiting()
}
