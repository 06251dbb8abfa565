package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const metricNamespace = "github.com/aditya4232/AgentForge-XT-sub001/internal/platform/observability"

// VerificationMetrics records session verification outcomes as otel instruments.
type VerificationMetrics struct {
	attempts metric.Int64Counter
	latency  metric.Float64Histogram

	attemptsEnabled bool
	latencyEnabled  bool
}

// NewVerificationMetrics registers verification instruments on the supplied
// meter, or the global meter provider when nil. Registration failures are
// logged and the affected instrument is skipped.
func NewVerificationMetrics(meter metric.Meter, logger *zap.Logger) *VerificationMetrics {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(metricNamespace)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	attempts, attemptsErr := meter.Int64Counter(
		"auth.session.verifications",
		metric.WithDescription("Count of session token verification attempts"),
	)
	if attemptsErr != nil {
		logger.Warn("observability: unable to register verification counter", zap.Error(attemptsErr))
	}

	latency, latencyErr := meter.Float64Histogram(
		"auth.session.verification.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency in milliseconds of session token verification"),
	)
	if latencyErr != nil {
		logger.Warn("observability: unable to register verification latency", zap.Error(latencyErr))
	}

	return &VerificationMetrics{
		attempts:        attempts,
		latency:         latency,
		attemptsEnabled: attemptsErr == nil,
		latencyEnabled:  latencyErr == nil,
	}
}

// RecordVerification records a single verification outcome.
func (m *VerificationMetrics) RecordVerification(ctx context.Context, kind string, success bool, reason string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("success", success),
		attribute.String("reason", reason),
	)
	if m.attemptsEnabled {
		m.attempts.Add(ctx, 1, attrs)
	}
	if m.latencyEnabled {
		m.latency.Record(ctx, float64(duration)/float64(time.Millisecond), attrs)
	}
}
