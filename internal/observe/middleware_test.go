package observe_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"voxnote/internal/observe"
)

func TestMiddleware_RecordsRequestDuration(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)

	handler := observe.Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("middleware must not alter the response status, got %d", rec.Code)
	}

	rm := collect(t, reader)
	dur := findMetric(t, rm, "voxnote.http.request.duration")
	hist, ok := dur.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("request duration data: want Histogram[float64], got %T", dur.Data)
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Fatalf("want exactly one recorded request, got %+v", hist.DataPoints)
	}
}

func TestMiddleware_DefaultStatusIsOK(t *testing.T) {
	t.Parallel()

	m, _ := newTestMetrics(t)

	handler := observe.Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Write without an explicit WriteHeader call.
		if _, err := w.Write([]byte("ok")); err != nil {
			t.Errorf("write: %v", err)
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("implicit status: want 200, got %d", rec.Code)
	}
}
