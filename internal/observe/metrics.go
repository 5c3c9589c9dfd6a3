// Package observe provides application-wide observability primitives for
// leadline: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so metrics can be scraped
// from the standard /metrics endpoint. A package-level default [Metrics]
// instance ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all leadline metrics.
const meterName = "github.com/lucasbarrios/leadline"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// LLMDuration tracks LLM completion latency (chat replies and
	// transcript summarisation alike).
	LLMDuration metric.Float64Histogram

	// DeliveryDuration tracks lead delivery latency (store plus notifiers).
	DeliveryDuration metric.Float64Histogram

	// --- Funnel counters ---

	// TriggersDetected counts buying-intent triggers.
	TriggersDetected metric.Int64Counter

	// CapturesStarted counts captures the visitor confirmed into.
	CapturesStarted metric.Int64Counter

	// CapturesCompleted counts captures that reached the final send.
	CapturesCompleted metric.Int64Counter

	// CapturesDeclined counts captures abandoned by an explicit "no". Use
	// with attribute:
	//   attribute.String("stage", "confirm_capture" | "confirm_send")
	CapturesDeclined metric.Int64Counter

	// ValidationFailures counts re-prompts from goal validation. Use with
	// attribute:
	//   attribute.String("goal", ...)
	ValidationFailures metric.Int64Counter

	// LeadsDelivered counts delivery attempts. Use with attribute:
	//   attribute.String("status", "ok" | "partial" | "error")
	LeadsDelivered metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts LLM and embedding provider errors. Use with
	// attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveConversations tracks the number of live chat sessions.
	ActiveConversations metric.Int64UpDownCounter

	// ActiveCaptures tracks the number of sessions currently inside the
	// capture script.
	ActiveCaptures metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// LLM round trips and webhook deliveries.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.LLMDuration, err = m.Float64Histogram("leadline.llm.duration",
		metric.WithDescription("Latency of LLM completions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DeliveryDuration, err = m.Float64Histogram("leadline.delivery.duration",
		metric.WithDescription("Latency of lead delivery."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Funnel counters.
	if met.TriggersDetected, err = m.Int64Counter("leadline.triggers.detected",
		metric.WithDescription("Total buying-intent triggers detected."),
	); err != nil {
		return nil, err
	}
	if met.CapturesStarted, err = m.Int64Counter("leadline.captures.started",
		metric.WithDescription("Total captures the visitor confirmed into."),
	); err != nil {
		return nil, err
	}
	if met.CapturesCompleted, err = m.Int64Counter("leadline.captures.completed",
		metric.WithDescription("Total captures that reached the final send."),
	); err != nil {
		return nil, err
	}
	if met.CapturesDeclined, err = m.Int64Counter("leadline.captures.declined",
		metric.WithDescription("Total captures declined by stage."),
	); err != nil {
		return nil, err
	}
	if met.ValidationFailures, err = m.Int64Counter("leadline.validation.failures",
		metric.WithDescription("Total goal validation re-prompts by goal."),
	); err != nil {
		return nil, err
	}
	if met.LeadsDelivered, err = m.Int64Counter("leadline.leads.delivered",
		metric.WithDescription("Total lead delivery attempts by status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("leadline.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveConversations, err = m.Int64UpDownCounter("leadline.active_conversations",
		metric.WithDescription("Number of live chat sessions."),
	); err != nil {
		return nil, err
	}
	if met.ActiveCaptures, err = m.Int64UpDownCounter("leadline.active_captures",
		metric.WithDescription("Number of sessions currently inside the capture script."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("leadline.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordCaptureDeclined records a declined capture with its stage attribute.
func (m *Metrics) RecordCaptureDeclined(ctx context.Context, stage string) {
	m.CapturesDeclined.Add(ctx, 1,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordValidationFailure records a goal validation re-prompt.
func (m *Metrics) RecordValidationFailure(ctx context.Context, goal string) {
	m.ValidationFailures.Add(ctx, 1,
		metric.WithAttributes(attribute.String("goal", goal)),
	)
}

// RecordLeadDelivered records a delivery attempt with its status attribute.
func (m *Metrics) RecordLeadDelivered(ctx context.Context, status string) {
	m.LeadsDelivered.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
