package license

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	TracerName = "license-lifecycle"
	MeterName  = "license-lifecycle"
)

// Metrics holds the license OpenTelemetry instruments.
type Metrics struct {
	VerifyTotal     metric.Int64Counter
	VerifyDuration  metric.Float64Histogram
	Reclamations    metric.Int64Counter
	Releases        metric.Int64Counter
	AdminOperations metric.Int64Counter
	StoreFailures   metric.Int64Counter
	StoreDuration   metric.Float64Histogram
}

// InitializeMetrics creates the license instruments on meter.
func InitializeMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.VerifyTotal, err = meter.Int64Counter(
		"license_verify_total",
		metric.WithDescription("Verification calls by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create verify counter: %w", err)
	}

	m.VerifyDuration, err = meter.Float64Histogram(
		"license_verify_duration_seconds",
		metric.WithDescription("Verification duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create verify duration histogram: %w", err)
	}

	m.Reclamations, err = meter.Int64Counter(
		"license_reclamations_total",
		metric.WithDescription("Stale bindings cleared after heartbeat timeout"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reclamation counter: %w", err)
	}

	m.Releases, err = meter.Int64Counter(
		"license_releases_total",
		metric.WithDescription("Release calls by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create release counter: %w", err)
	}

	m.AdminOperations, err = meter.Int64Counter(
		"license_admin_operations_total",
		metric.WithDescription("Administrative operations by name and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create admin operation counter: %w", err)
	}

	m.StoreFailures, err = meter.Int64Counter(
		"license_store_failures_total",
		metric.WithDescription("License store failures"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store failure counter: %w", err)
	}

	m.StoreDuration, err = meter.Float64Histogram(
		"license_store_update_duration_seconds",
		metric.WithDescription("Read-modify-write duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store duration histogram: %w", err)
	}

	return m, nil
}

func (m *Metrics) recordVerify(ctx context.Context, res VerifyResult, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := outcomeOf(err)
	if err == nil {
		if res.Valid {
			outcome = string(res.Note)
		} else {
			outcome = string(res.Reason)
		}
	}
	labels := metric.WithAttributes(attribute.String("outcome", outcome))
	m.VerifyTotal.Add(ctx, 1, labels)
	m.VerifyDuration.Record(ctx, d.Seconds(), labels)
	if res.Reclaimed {
		m.Reclamations.Add(ctx, 1)
	}
}

func (m *Metrics) recordRelease(ctx context.Context, err error) {
	if m == nil {
		return
	}
	m.Releases.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcomeOf(err))))
}

func (m *Metrics) recordAdmin(ctx context.Context, op string, err error) {
	if m == nil {
		return
	}
	m.AdminOperations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcomeOf(err)),
	))
}

func (m *Metrics) recordStore(ctx context.Context, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.StoreDuration.Record(ctx, d.Seconds())
	if errors.Is(err, ErrStoreUnavailable) {
		m.StoreFailures.Add(ctx, 1)
	}
}

// outcomeOf classifies err for metric labels and span attributes.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrKeyNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrKeyConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}

// startSpan starts a span on the package tracer.
func startSpan(ctx context.Context, name, key string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name,
		trace.WithAttributes(
			attribute.String("license.key_prefix", MaskKey(key)),
			attribute.String("component", "license_lifecycle"),
		),
	)
}

// endSpan records err on span and ends it. Business denials do not mark the
// span as failed.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.SetAttributes(attribute.String("license.outcome", outcomeOf(err)))
		if !IsDenial(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

// MaskKey returns a log-safe prefix of a license key.
func MaskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + "****"
}
