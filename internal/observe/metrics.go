// Package observe provides application-wide observability primitives for
// callbridge: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all callbridge metrics.
const meterName = "github.com/timetocall/callbridge"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Histograms ---

	// CallDuration tracks connected call length in seconds. Use with
	// attribute: attribute.String("status", ...)
	CallDuration metric.Float64Histogram

	// SessionConnectDuration tracks how long opening a voice session takes.
	SessionConnectDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// --- Counters ---

	// CallsStarted counts calls accepted by /start-call.
	CallsStarted metric.Int64Counter

	// CallsCompleted counts finished calls. Use with attribute:
	//   attribute.String("status", ...)
	CallsCompleted metric.Int64Counter

	// AudioChunksSent counts 20 ms chunks written to the carrier WebSocket.
	AudioChunksSent metric.Int64Counter

	// AudioChunksDropped counts chunks discarded while no WebSocket was
	// attached to the call.
	AudioChunksDropped metric.Int64Counter

	// AudioBytesIn counts caller audio bytes forwarded to the voice session.
	AudioBytesIn metric.Int64Counter

	// AudioBytesOut counts synthesised audio bytes sent to the carrier.
	AudioBytesOut metric.Int64Counter

	// CallbackDeliveries counts orchestrator callback attempts. Use with
	// attributes: attribute.String("event", ...), attribute.String("status", ...)
	CallbackDeliveries metric.Int64Counter

	// --- Gauges ---

	// ActiveCalls tracks the number of calls currently in the registry.
	ActiveCalls metric.Int64UpDownCounter

	// ActiveSessions tracks the number of open voice sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// request-scale latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// callBuckets defines histogram bucket boundaries (in seconds) for whole
// calls, which run up to the five-minute budget.
var callBuckets = []float64{
	5, 15, 30, 60, 120, 180, 240, 300, 360,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.CallDuration, err = m.Float64Histogram("callbridge.call.duration",
		metric.WithDescription("Connected call length by final status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(callBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SessionConnectDuration, err = m.Float64Histogram("callbridge.session.connect.duration",
		metric.WithDescription("Latency of opening a voice session."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("callbridge.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.CallsStarted, err = m.Int64Counter("callbridge.calls.started",
		metric.WithDescription("Total calls accepted for dialing."),
	); err != nil {
		return nil, err
	}
	if met.CallsCompleted, err = m.Int64Counter("callbridge.calls.completed",
		metric.WithDescription("Total finished calls by final status."),
	); err != nil {
		return nil, err
	}
	if met.AudioChunksSent, err = m.Int64Counter("callbridge.audio.chunks.sent",
		metric.WithDescription("Total audio chunks written to the carrier media stream."),
	); err != nil {
		return nil, err
	}
	if met.AudioChunksDropped, err = m.Int64Counter("callbridge.audio.chunks.dropped",
		metric.WithDescription("Total audio chunks dropped while no media WebSocket was attached."),
	); err != nil {
		return nil, err
	}
	if met.AudioBytesIn, err = m.Int64Counter("callbridge.audio.bytes.in",
		metric.WithDescription("Total caller audio bytes forwarded to the voice session."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.AudioBytesOut, err = m.Int64Counter("callbridge.audio.bytes.out",
		metric.WithDescription("Total synthesised audio bytes sent to the carrier."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.CallbackDeliveries, err = m.Int64Counter("callbridge.callback.deliveries",
		metric.WithDescription("Total orchestrator callback attempts by event and status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveCalls, err = m.Int64UpDownCounter("callbridge.active_calls",
		metric.WithDescription("Number of calls currently tracked in the registry."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("callbridge.active_sessions",
		metric.WithDescription("Number of open voice sessions."),
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

// RecordCallCompleted records one finished call with its final status and
// connected duration.
func (m *Metrics) RecordCallCompleted(ctx context.Context, status string, seconds float64) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.CallsCompleted.Add(ctx, 1, attrs)
	m.CallDuration.Record(ctx, seconds, attrs)
}

// RecordCallbackDelivery records one orchestrator callback attempt.
func (m *Metrics) RecordCallbackDelivery(ctx context.Context, event, status string) {
	m.CallbackDeliveries.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("event", event),
			attribute.String("status", status),
		),
	)
}
