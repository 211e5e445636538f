package telemetry

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"

	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

const defaultNamespace = "prisma_engine"

// PrometheusTelemetry implements Telemetry using Prometheus metrics. Each
// instance owns its registry so several engines can live in one process.
type PrometheusTelemetry struct {
	registry *prometheus.Registry

	queryDuration *prometheus.HistogramVec
	queryTotal    *prometheus.CounterVec
	errorTotal    *prometheus.CounterVec

	acquireWait          prometheus.Histogram
	acquireTimeouts      prometheus.Counter
	connectionsCreated   prometheus.Counter
	connectionsDestroyed *prometheus.CounterVec
}

// NewPrometheusTelemetry creates a new Prometheus telemetry adapter.
func NewPrometheusTelemetry(config *Config) *PrometheusTelemetry {
	ns := defaultNamespace
	if config != nil && config.Namespace != "" {
		ns = config.Namespace
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PrometheusTelemetry{
		registry: reg,
		queryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "query_duration_seconds",
				Help:      "Query latency in seconds, including connection acquisition",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
			[]string{"model", "operation"},
		),
		queryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "queries_total",
				Help:      "Total number of executed queries",
			},
			[]string{"model", "operation", "status"},
		),
		errorTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "errors_total",
				Help:      "Total number of failed queries by error kind",
			},
			[]string{"model", "operation", "kind"},
		),
		acquireWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "pool",
			Name:      "acquire_wait_seconds",
			Help:      "Time spent queued for a connection",
			Buckets:   prometheus.DefBuckets,
		}),
		acquireTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "pool",
			Name:      "acquire_timeouts_total",
			Help:      "Total number of acquisitions that timed out",
		}),
		connectionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "pool",
			Name:      "connections_created_total",
			Help:      "Total number of opened connections",
		}),
		connectionsDestroyed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "pool",
				Name:      "connections_destroyed_total",
				Help:      "Total number of destroyed connections",
			},
			[]string{"reason"},
		),
	}
}

// RecordQuery records a query execution.
func (p *PrometheusTelemetry) RecordQuery(ctx context.Context, info QueryInfo) {
	p.queryDuration.WithLabelValues(info.Model, info.Operation).Observe(info.Duration.Seconds())

	status := "success"
	if !info.Success {
		status = "error"
	}
	p.queryTotal.WithLabelValues(info.Model, info.Operation, status).Inc()
}

// RecordError records an error.
func (p *PrometheusTelemetry) RecordError(ctx context.Context, info ErrorInfo) {
	p.errorTotal.WithLabelValues(info.Model, info.Operation, qerr.KindOf(info.Error).String()).Inc()
}

// RecordConnection records a connection event.
func (p *PrometheusTelemetry) RecordConnection(ctx context.Context, info ConnectionInfo) {
	switch info.Event {
	case EventAcquire:
		p.acquireWait.Observe(info.Duration.Seconds())
	case EventTimeout:
		p.acquireTimeouts.Inc()
	case EventCreate:
		p.connectionsCreated.Inc()
	case EventDestroy:
		p.connectionsDestroyed.WithLabelValues(info.Reason).Inc()
	}
}

// Close is a no-op; the registry stays readable after Close.
func (p *PrometheusTelemetry) Close(ctx context.Context) error {
	return nil
}

// Registry returns the registry holding the adapter's collectors.
func (p *PrometheusTelemetry) Registry() *prometheus.Registry {
	return p.registry
}

// WriteText writes every collected metric in the Prometheus text format.
func (p *PrometheusTelemetry) WriteText(w io.Writer) error {
	families, err := p.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

var _ Telemetry = (*PrometheusTelemetry)(nil)
