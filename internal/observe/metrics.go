// Package observe provides observability primitives for voxnote:
// OpenTelemetry metrics and HTTP middleware that records request latency.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
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

// meterName is the instrumentation scope name used for all voxnote metrics.
const meterName = "voxnote"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TranscribeDuration tracks per-strategy transcription attempt latency.
	// Use with attributes:
	//   attribute.String("strategy", ...), attribute.String("status", ...)
	TranscribeDuration metric.Float64Histogram

	// AnalyzeDuration tracks LLM analysis latency. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	AnalyzeDuration metric.Float64Histogram

	// --- Counters ---

	// TranscribeAttempts counts transcription attempts by strategy and
	// outcome. The "polluted" attribute marks errors matching the known
	// client-state-pollution signature.
	TranscribeAttempts metric.Int64Counter

	// TranscribeExhausted counts voice messages for which every fallback
	// strategy failed.
	TranscribeExhausted metric.Int64Counter

	// VoiceMessages counts processed voice messages by final status.
	VoiceMessages metric.Int64Counter

	// Invitations counts invitation lifecycle events. Use with attribute:
	//   attribute.String("event", "issued"|"granted"|"invalid"|"expired")
	Invitations metric.Int64Counter

	// --- Gauges ---

	// ActivePipelines tracks the number of voice pipelines currently running.
	ActivePipelines metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// voice transcription and LLM analysis calls, which routinely take seconds.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TranscribeDuration, err = m.Float64Histogram("voxnote.transcribe.duration",
		metric.WithDescription("Latency of a single transcription strategy attempt."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AnalyzeDuration, err = m.Float64Histogram("voxnote.analyze.duration",
		metric.WithDescription("Latency of transcript analysis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.TranscribeAttempts, err = m.Int64Counter("voxnote.transcribe.attempts",
		metric.WithDescription("Total transcription attempts by strategy, status, and pollution signature."),
	); err != nil {
		return nil, err
	}
	if met.TranscribeExhausted, err = m.Int64Counter("voxnote.transcribe.exhausted",
		metric.WithDescription("Total voice messages for which all fallback strategies failed."),
	); err != nil {
		return nil, err
	}
	if met.VoiceMessages, err = m.Int64Counter("voxnote.voice.messages",
		metric.WithDescription("Total processed voice messages by final status."),
	); err != nil {
		return nil, err
	}
	if met.Invitations, err = m.Int64Counter("voxnote.invitations",
		metric.WithDescription("Total invitation lifecycle events."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActivePipelines, err = m.Int64UpDownCounter("voxnote.active_pipelines",
		metric.WithDescription("Number of voice pipelines currently running."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxnote.http.request.duration",
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

// RecordAttempt records one transcription strategy attempt.
func (m *Metrics) RecordAttempt(ctx context.Context, strategy, status string, polluted bool) {
	p := "false"
	if polluted {
		p = "true"
	}
	m.TranscribeAttempts.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("strategy", strategy),
			attribute.String("status", status),
			attribute.String("polluted", p),
		),
	)
}

// RecordInvitation records an invitation lifecycle event
// ("issued", "granted", "invalid", or "expired").
func (m *Metrics) RecordInvitation(ctx context.Context, event string) {
	m.Invitations.Add(ctx, 1,
		metric.WithAttributes(attribute.String("event", event)),
	)
}

// RecordVoiceMessage records a processed voice message with its final status
// ("ok", "transcribe_failed", or "analysis_degraded").
func (m *Metrics) RecordVoiceMessage(ctx context.Context, status string) {
	m.VoiceMessages.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
