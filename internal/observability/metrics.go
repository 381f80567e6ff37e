// Package observability exposes Prometheus gauges/histograms for the
// runtime's circuit breakers, spawn ceilings, and chat iterations, plus a
// thin OpenTelemetry tracer wrapper. No other package in this module calls
// either; nothing records spans around Transport calls or chat iterations. The teacher repo carries no metrics package of its own; this
// is grounded directly on the prometheus/client_golang and
// go.opentelemetry.io/otel APIs, the libraries the rest of the retrieved
// pack reaches for observability.
package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Metrics bundles every Prometheus collector the runtime registers.
type Metrics struct {
	CircuitState       *prometheus.GaugeVec
	SpawnCeilingUsage  *prometheus.GaugeVec
	ChatIterations     prometheus.Histogram
	JobDispatches      *prometheus.CounterVec
	ArtifactWrites     *prometheus.CounterVec
}

// NewMetrics registers and returns the runtime's collectors against reg. Pass
// prometheus.NewRegistry() for isolated tests or prometheus.DefaultRegisterer
// for the process-wide registry. The CLI serves no /metrics endpoint.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CircuitState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ariad",
			Subsystem: "transport",
			Name:      "circuit_state",
			Help:      "Circuit breaker state per endpoint (0=closed, 1=half_open, 2=open).",
		}, []string{"endpoint"}),
		SpawnCeilingUsage: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ariad",
			Subsystem: "agentpool",
			Name:      "spawn_ceiling_usage",
			Help:      "Live agent count per agent type, relative to its ceiling.",
		}, []string{"agent_type"}),
		ChatIterations: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ariad",
			Subsystem: "chatengine",
			Name:      "iterations_per_turn",
			Help:      "Number of tool-calling iterations consumed per user turn.",
			Buckets:   []float64{1, 2, 3, 4, 5, 7, 10},
		}),
		JobDispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ariad",
			Subsystem: "cron",
			Name:      "job_dispatches_total",
			Help:      "Cron job dispatches by terminal status.",
		}, []string{"status"}),
		ArtifactWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ariad",
			Subsystem: "artifacts",
			Name:      "writes_total",
			Help:      "Artifact writes by category.",
		}, []string{"category"}),
	}
}

// CircuitStateValue maps a transport.CircuitState string to the gauge value
// convention documented on CircuitState's Help text.
func CircuitStateValue(state string) float64 {
	switch state {
	case "closed":
		return 0
	case "half_open":
		return 1
	default:
		return 2
	}
}

// Tracer returns the runtime's named tracer for spans around Transport calls
// and chat iterations.
func Tracer() trace.Tracer {
	return otel.Tracer("github.com/Najia-afk/Aria-moltbot-sub003")
}

// StartSpan is a small convenience wrapper so call sites don't repeat the
// Tracer() lookup.
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name)
}
