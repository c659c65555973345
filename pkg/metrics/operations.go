package metrics

import "github.com/Kikk79/docstore/pkg/operation"

// NewOperationMetrics returns a Prometheus-backed operation.Metrics, or
// nil when metrics are disabled.
func NewOperationMetrics() operation.Metrics {
	if !IsEnabled() || newPrometheusOperationMetrics == nil {
		return nil
	}
	return newPrometheusOperationMetrics()
}

var newPrometheusOperationMetrics func() operation.Metrics

// RegisterOperationMetricsConstructor installs the implementation
// constructor. Called by pkg/metrics/prometheus.
func RegisterOperationMetricsConstructor(constructor func() operation.Metrics) {
	newPrometheusOperationMetrics = constructor
}
