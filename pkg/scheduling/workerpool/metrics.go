package workerpool

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/sendgate/pkg/metrics"
)

// NewWithMetrics creates a worker pool whose size and active worker gauges
// are recorded in a private registry.
func NewWithMetrics(config Config, name string) (Pool, error) {
	return NewWithConfigAndMetrics(config, name, metrics.Config{
		Enabled:  true,
		Registry: prometheus.NewRegistry(),
	})
}

// NewWithConfigAndMetrics creates a worker pool with custom config and metrics.
// Hooks already present in config are still called.
func NewWithConfigAndMetrics(config Config, name string, metricsConfig metrics.Config) (Pool, error) {
	if !metricsConfig.Enabled {
		return NewWithConfigSafe(config)
	}

	registry := metrics.DefaultRegistry
	if metricsConfig.Registry != nil {
		registry = metrics.NewRegistryWithConfig(metricsConfig)
	}
	return NewWithRegistry(config, name, registry)
}

// NewWithRegistry creates a worker pool recording into an existing registry.
func NewWithRegistry(config Config, name string, registry *metrics.Registry) (Pool, error) {
	if registry == nil {
		return NewWithConfigSafe(config)
	}

	active := registry.WorkerPoolActive.WithLabelValues(name)

	onStart := config.OnTaskStart
	config.OnTaskStart = func(workerID int, task Task) {
		active.Inc()
		if onStart != nil {
			onStart(workerID, task)
		}
	}

	onComplete := config.OnTaskComplete
	config.OnTaskComplete = func(workerID int, result Result) {
		active.Dec()
		if onComplete != nil {
			onComplete(workerID, result)
		}
	}

	pool, err := newPool(config)
	if err != nil {
		return nil, err
	}
	registry.WorkerPoolSize.WithLabelValues(name).Set(float64(config.WorkerCount))

	return pool, nil
}
