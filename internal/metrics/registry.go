package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/davidleathers/dependable-access-control/internal/domain/access"
)

// Registry holds the access-control instruments. It satisfies the engine's
// MetricsRecorder.
type Registry struct {
	meter metric.Meter

	// Decision metrics
	DecisionCounter    metric.Int64Counter
	EvaluationLatency  metric.Float64Histogram
	CheckErrorCounter  metric.Int64Counter
	RelationshipChecks metric.Int64Counter

	// Filtering metrics
	FilteringCounter metric.Int64Counter
	FilteredFields   metric.Int64Histogram

	// Grant lifecycle metrics
	PermissionChanges metric.Int64Counter
	LastSweepExpired  metric.Int64ObservableGauge

	// Audit metrics
	AuditFailureCounter metric.Int64Counter

	mu               sync.RWMutex
	lastSweepExpired int64
	lastSweepAt      time.Time
}

// NewRegistry creates a registry on the global meter provider
func NewRegistry(meterName string) (*Registry, error) {
	return NewRegistryWithProvider(otel.GetMeterProvider(), meterName)
}

// NewRegistryWithProvider creates a registry on mp
func NewRegistryWithProvider(mp metric.MeterProvider, meterName string) (*Registry, error) {
	r := &Registry{meter: mp.Meter(meterName)}

	if err := r.initDecisionMetrics(); err != nil {
		return nil, err
	}
	if err := r.initFilteringMetrics(); err != nil {
		return nil, err
	}
	if err := r.initLifecycleMetrics(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) initDecisionMetrics() error {
	var err error

	r.DecisionCounter, err = r.meter.Int64Counter(
		"access.decisions_total",
		metric.WithDescription("Access decisions by type and scope"),
	)
	if err != nil {
		return err
	}

	r.EvaluationLatency, err = r.meter.Float64Histogram(
		"access.evaluation_duration",
		metric.WithDescription("Duration of an access evaluation in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250),
	)
	if err != nil {
		return err
	}

	r.CheckErrorCounter, err = r.meter.Int64Counter(
		"access.check_errors_total",
		metric.WithDescription("Access checks that failed closed"),
	)
	if err != nil {
		return err
	}

	r.RelationshipChecks, err = r.meter.Int64Counter(
		"access.relationship_checks_total",
		metric.WithDescription("Relationship lookups by evidence source and cache use"),
	)
	return err
}

func (r *Registry) initFilteringMetrics() error {
	var err error

	r.FilteringCounter, err = r.meter.Int64Counter(
		"access.filtering_total",
		metric.WithDescription("Payloads returned, by filtering strategy"),
	)
	if err != nil {
		return err
	}

	r.FilteredFields, err = r.meter.Int64Histogram(
		"access.filtered_fields",
		metric.WithDescription("Distinct fields removed from a returned payload"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 5, 10, 25, 50),
	)
	return err
}

func (r *Registry) initLifecycleMetrics() error {
	var err error

	r.PermissionChanges, err = r.meter.Int64Counter(
		"access.permission_changes_total",
		metric.WithDescription("Explicit grant lifecycle events"),
	)
	if err != nil {
		return err
	}

	r.AuditFailureCounter, err = r.meter.Int64Counter(
		"access.audit_failures_total",
		metric.WithDescription("Audit entries that could not be written"),
	)
	if err != nil {
		return err
	}

	r.LastSweepExpired, err = r.meter.Int64ObservableGauge(
		"access.sweep.last_expired",
		metric.WithDescription("Grants deactivated by the most recent expiry sweep"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			if !r.lastSweepAt.IsZero() {
				o.Observe(r.lastSweepExpired)
			}
			return nil
		}),
	)
	return err
}

// RecordDecision counts a decision and its evaluation latency
func (r *Registry) RecordDecision(ctx context.Context, decision access.DecisionType, crossCompany bool, latency time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("decision", decision.String()),
		attribute.Bool("cross_company", crossCompany),
	)
	r.DecisionCounter.Add(ctx, 1, attrs)
	r.EvaluationLatency.Record(ctx, float64(latency.Microseconds())/1000, attrs)
}

func (r *Registry) RecordCheckError(ctx context.Context, outcome string) {
	r.CheckErrorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (r *Registry) RecordFiltering(ctx context.Context, strategy access.FilteringStrategy, filteredFields int) {
	attrs := metric.WithAttributes(attribute.String("strategy", strategy.String()))
	r.FilteringCounter.Add(ctx, 1, attrs)
	r.FilteredFields.Record(ctx, int64(filteredFields), attrs)
}

func (r *Registry) RecordPermissionChange(ctx context.Context, event access.AuditEventType, count int) {
	if count <= 0 {
		return
	}
	r.PermissionChanges.Add(ctx, int64(count), metric.WithAttributes(attribute.String("event", event.String())))
}

func (r *Registry) RecordAuditFailure(ctx context.Context, event access.AuditEventType) {
	r.AuditFailureCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event.String())))
}

func (r *Registry) RecordRelationshipCheck(ctx context.Context, source string, cached bool) {
	r.RelationshipChecks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.Bool("cached", cached),
	))
}

// RecordSweep stores the result of an expiry sweep for the gauge
func (r *Registry) RecordSweep(expired int, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSweepExpired = int64(expired)
	r.lastSweepAt = at
}
