package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every sendgate metric name.
const DefaultNamespace = "sendgate"

// Config selects where a component registers its collectors.
type Config struct {
	// Enabled turns recording on. A disabled component keeps no registry.
	Enabled bool

	// Registry receives the collectors. Nil means prometheus.DefaultRegisterer,
	// which panics if two components register the same names; share a
	// *Registry through the NewWithRegistry constructors instead.
	Registry prometheus.Registerer

	// Namespace replaces DefaultNamespace.
	Namespace string
}

// Instrumentable is implemented by components whose recording can be
// switched at runtime.
type Instrumentable interface {
	EnableMetrics(config Config) error
	DisableMetrics()
	MetricsEnabled() bool
}
