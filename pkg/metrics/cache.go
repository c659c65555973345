package metrics

import "github.com/Kikk79/docstore/pkg/cache"

// NewCacheMetrics returns a Prometheus-backed cache.Metrics, or nil
// when metrics are disabled (InitRegistry not called). Passing the nil
// straight to cache.New is the intended zero-overhead path.
func NewCacheMetrics() cache.Metrics {
	if !IsEnabled() || newPrometheusCacheMetrics == nil {
		return nil
	}
	return newPrometheusCacheMetrics()
}

// newPrometheusCacheMetrics is installed by pkg/metrics/prometheus at
// package init. The indirection keeps this package free of an import
// cycle with the implementation.
var newPrometheusCacheMetrics func() cache.Metrics

// RegisterCacheMetricsConstructor installs the implementation
// constructor. Called by pkg/metrics/prometheus.
func RegisterCacheMetricsConstructor(constructor func() cache.Metrics) {
	newPrometheusCacheMetrics = constructor
}
