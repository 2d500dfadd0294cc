package observe_test

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"voxnote/internal/observe"
)

// newTestMetrics returns a Metrics instance backed by a manual reader so
// tests can collect recorded data points.
func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metrics recorded so far.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric returns the metric with the given name, or fails the test.
func findMetric(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Metrics {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	t.Fatalf("metric %q not found", name)
	return metricdata.Metrics{}
}

func TestRecordAttempt(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordAttempt(ctx, "subprocess", "error", true)
	m.RecordAttempt(ctx, "http", "ok", false)

	rm := collect(t, reader)
	attempts := findMetric(t, rm, "voxnote.transcribe.attempts")
	sum, ok := attempts.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("attempts data: want Sum[int64], got %T", attempts.Data)
	}
	if len(sum.DataPoints) != 2 {
		t.Fatalf("attempts data points: want 2 attribute sets, got %d", len(sum.DataPoints))
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 2 {
		t.Errorf("attempts total: want 2, got %d", total)
	}
}

func TestRecordInvitation(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordInvitation(ctx, "issued")
	m.RecordInvitation(ctx, "granted")
	m.RecordInvitation(ctx, "granted")

	rm := collect(t, reader)
	inv := findMetric(t, rm, "voxnote.invitations")
	sum, ok := inv.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("invitations data: want Sum[int64], got %T", inv.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 3 {
		t.Errorf("invitations total: want 3, got %d", total)
	}
}

func TestTranscribeDurationHistogram(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	m.TranscribeDuration.Record(context.Background(), 1.5)

	rm := collect(t, reader)
	dur := findMetric(t, rm, "voxnote.transcribe.duration")
	hist, ok := dur.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("duration data: want Histogram[float64], got %T", dur.Data)
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Errorf("duration: want exactly one recorded point, got %+v", hist.DataPoints)
	}
}
