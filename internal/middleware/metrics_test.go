package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type mockMetricsRecorder struct {
	statuses  []int
	latencies []time.Duration
}

func (m *mockMetricsRecorder) RecordHTTPStatus(statusCode int) {
	m.statuses = append(m.statuses, statusCode)
}

func (m *mockMetricsRecorder) RecordRequestLatency(duration time.Duration) {
	m.latencies = append(m.latencies, duration)
}

func TestMetricsMiddleware_RecordsStatusAndLatency(t *testing.T) {
	recorder := &mockMetricsRecorder{}
	mw := NewMetricsMiddleware(recorder)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/tasks", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if len(recorder.statuses) != 1 || recorder.statuses[0] != http.StatusCreated {
		t.Errorf("statuses = %v, want [201]", recorder.statuses)
	}
	if len(recorder.latencies) != 1 {
		t.Errorf("latencies count = %d, want 1", len(recorder.latencies))
	}
}

func TestMetricsMiddleware_DefaultsTo200WhenNotWritten(t *testing.T) {
	recorder := &mockMetricsRecorder{}
	mw := NewMetricsMiddleware(recorder)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if len(recorder.statuses) != 1 || recorder.statuses[0] != http.StatusOK {
		t.Errorf("statuses = %v, want [200]", recorder.statuses)
	}
}
