// Invariants are conditions that must hold unless there is a bug in parrot itself, e.g. a cache constructed with a
// non-positive capacity or a scope registry without shards. Raising an invariant doesn't crash the server: the
// violation is logged, counted in the `invariants_total` metric (which alerts) and the caller falls back to a safe
// default. Test-mode builds panic instead so the bug surfaces right away.
//
// Don't raise invariants for conditions that depend on clients or the environment; a RESP client sending a bad
// command or a missing config file are ordinary errors.

package utils

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	promclient "github.com/prometheus/client_model/go"
)

var invariantsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "invariants_total",
	Help: "The total number of invariant violations",
}, []string{
	"module", // The module in which this invariant occurred.
	"type",   // The type of the invariant that occurred.
})

// RaiseInvariant records a violated invariant of `invariantType` inside `module`. The `args` are slog attributes.
func RaiseInvariant(module, invariantType, msg string, args ...any) {
	invariantsMetric.WithLabelValues(module, invariantType).Inc()
	slog.With("invariant", invariantType, "module", module).Error(msg, args...)
	if IsTestMode {
		panic("invariant violated: " + invariantType)
	}
}

// GetMetricValue returns the current value of the invariant metric with labels `module` and `invariantType`.
func GetMetricValue(module, invariantType string) int {
	var metric = &promclient.Metric{}
	if err := invariantsMetric.WithLabelValues(module, invariantType).Write(metric); err != nil {
		slog.Error("Failed to read invariant metric.", "error", err)
		return 0
	}
	return int(metric.Counter.GetValue())
}
