package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNew(t *testing.T) {
	m := New()
	if m == nil {
		t.Fatal("New() returned nil")
	}
	if m.registry == nil {
		t.Fatal("registry is nil")
	}
}

func TestRecordRequest(t *testing.T) {
	m := New()
	m.RecordRequest("/v1/reduce", 200, 50*time.Millisecond)
	m.RecordRequest("/v1/reduce", 200, 100*time.Millisecond)
	m.RecordRequest("/v1/reduce", 400, 5*time.Millisecond)

	val := counterValue(t, m.RequestsTotal, "endpoint", "/v1/reduce", "status", "200")
	if val != 2 {
		t.Errorf("expected 2 requests with status 200, got %f", val)
	}

	val = counterValue(t, m.RequestsTotal, "endpoint", "/v1/reduce", "status", "400")
	if val != 1 {
		t.Errorf("expected 1 request with status 400, got %f", val)
	}
}

func TestRecordReduce(t *testing.T) {
	m := New()
	m.RecordReduce(25*time.Millisecond, 42)

	var metric dto.Metric
	if err := m.MicroClusters.Write(&metric); err != nil {
		t.Fatalf("failed to read gauge: %v", err)
	}
	if metric.GetGauge().GetValue() != 42 {
		t.Errorf("expected microclusters gauge 42, got %f", metric.GetGauge().GetValue())
	}
}

func TestMiddleware(t *testing.T) {
	m := New()

	handler := m.Middleware("/v1/reduce", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/reduce", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	val := counterValue(t, m.RequestsTotal, "endpoint", "/v1/reduce", "status", "200")
	if val != 1 {
		t.Errorf("expected 1 request recorded, got %f", val)
	}
}

func TestMiddlewareErrorStatus(t *testing.T) {
	m := New()

	handler := m.Middleware("/v1/reduce", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/reduce", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	val := counterValue(t, m.RequestsTotal, "endpoint", "/v1/reduce", "status", "400")
	if val != 1 {
		t.Errorf("expected 1 request with status 400, got %f", val)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordRequest("/v1/reduce", 200, 10*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "clustream_requests_total") {
		t.Error("metrics output missing clustream_requests_total")
	}
	if !strings.Contains(body, "clustream_request_duration_seconds") {
		t.Error("metrics output missing clustream_request_duration_seconds")
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("metrics output missing go runtime metrics")
	}
}

func TestActiveRequests(t *testing.T) {
	m := New()

	started := make(chan struct{})
	release := make(chan struct{})

	handler := m.Middleware("/v1/reduce", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		req := httptest.NewRequest(http.MethodPost, "/v1/reduce", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
	}()

	<-started

	var metric dto.Metric
	if err := m.ActiveRequests.Write(&metric); err != nil {
		t.Fatalf("failed to read gauge: %v", err)
	}
	if metric.GetGauge().GetValue() != 1 {
		t.Errorf("expected 1 active request, got %f", metric.GetGauge().GetValue())
	}

	close(release)
}

func TestRecordTransitions(t *testing.T) {
	m := New()
	m.RecordIngest()
	m.RecordIngest()
	m.RecordBootstrap()
	m.RecordAbsorb()
	m.RecordAbsorb()
	m.RecordForget()
	m.RecordMerge()

	if v := simpleCounterValue(t, m.PointsIngested); v != 2 {
		t.Errorf("PointsIngested = %f, want 2", v)
	}
	if v := simpleCounterValue(t, m.Bootstraps); v != 1 {
		t.Errorf("Bootstraps = %f, want 1", v)
	}
	if v := simpleCounterValue(t, m.Absorptions); v != 2 {
		t.Errorf("Absorptions = %f, want 2", v)
	}
	if v := simpleCounterValue(t, m.Forgets); v != 1 {
		t.Errorf("Forgets = %f, want 1", v)
	}
	if v := simpleCounterValue(t, m.Merges); v != 1 {
		t.Errorf("Merges = %f, want 1", v)
	}
}

func TestRecorderIncrementsCoresetCounters(t *testing.T) {
	m := New()
	rec := NewRecorder(m, nil)

	rec.DegenerateSample(3)
	rec.NoCentreNearest(7)
	rec.DummyCentre()
	rec.DummyCentre()

	if v := simpleCounterValue(t, m.DegenerateSamples); v != 1 {
		t.Errorf("DegenerateSamples = %f, want 1", v)
	}
	if v := simpleCounterValue(t, m.NoCentreNearest); v != 1 {
		t.Errorf("NoCentreNearest = %f, want 1", v)
	}
	if v := simpleCounterValue(t, m.DummyCentres); v != 2 {
		t.Errorf("DummyCentres = %f, want 2", v)
	}
}

// simpleCounterValue extracts the current value of a bare (non-vec) counter.
func simpleCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.GetCounter().GetValue()
}

// counterValue extracts the value of a counter with the given label pairs.
func counterValue(t *testing.T, cv *prometheus.CounterVec, labelPairs ...string) float64 {
	t.Helper()
	labels := prometheus.Labels{}
	for i := 0; i < len(labelPairs); i += 2 {
		labels[labelPairs[i]] = labelPairs[i+1]
	}
	counter, err := cv.GetMetricWith(labels)
	if err != nil {
		t.Fatalf("failed to get metric: %v", err)
	}
	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.GetCounter().GetValue()
}
