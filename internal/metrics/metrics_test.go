package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}

	if m.registry == nil {
		t.Error("Registry is nil")
	}

	if m.SessionsActive == nil {
		t.Error("SessionsActive is nil")
	}
	if m.SessionsCreated == nil {
		t.Error("SessionsCreated is nil")
	}
	if m.SessionsDestroyed == nil {
		t.Error("SessionsDestroyed is nil")
	}
	if m.LinesAccepted == nil {
		t.Error("LinesAccepted is nil")
	}
	if m.UnitsDispatched == nil {
		t.Error("UnitsDispatched is nil")
	}
	if m.DispatchDuration == nil {
		t.Error("DispatchDuration is nil")
	}
	if m.Interrupts == nil {
		t.Error("Interrupts is nil")
	}
	if m.TransportErrors == nil {
		t.Error("TransportErrors is nil")
	}
}

func TestSessionLifecycleMetrics(t *testing.T) {
	m := NewMetrics()

	m.SessionCreated("remote")
	m.SessionCreated("remote")
	m.SessionCreated("local")
	m.SessionDestroyed("remote")

	if got := testutil.ToFloat64(m.SessionsActive.WithLabelValues("remote")); got != 1 {
		t.Errorf("active remote sessions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SessionsActive.WithLabelValues("local")); got != 1 {
		t.Errorf("active local sessions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SessionsCreated.WithLabelValues("remote")); got != 2 {
		t.Errorf("created remote sessions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.SessionsDestroyed.WithLabelValues("remote")); got != 1 {
		t.Errorf("destroyed remote sessions = %v, want 1", got)
	}
}

func TestInputMetrics(t *testing.T) {
	m := NewMetrics()

	m.LineAccepted("local")
	m.LineAccepted("local")
	m.UnitDispatched("local", 5*time.Millisecond)
	m.Interrupted()
	m.TransportError("tcp")

	if got := testutil.ToFloat64(m.LinesAccepted.WithLabelValues("local")); got != 2 {
		t.Errorf("lines = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.UnitsDispatched.WithLabelValues("local")); got != 1 {
		t.Errorf("units = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Interrupts); got != 1 {
		t.Errorf("interrupts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.TransportErrors.WithLabelValues("tcp")); got != 1 {
		t.Errorf("transport errors = %v, want 1", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics

	m.SessionCreated("remote")
	m.SessionDestroyed("remote")
	m.LineAccepted("remote")
	m.UnitDispatched("remote", time.Second)
	m.Interrupted()
	m.TransportError("tcp")
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()

	m.SessionCreated("local")
	m.UnitDispatched("local", time.Millisecond)

	handler := m.Handler()
	if handler == nil {
		t.Fatal("Handler returned nil")
	}

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	expectedMetrics := []string{
		"sockrepl_sessions_active",
		"sockrepl_sessions_created_total",
		"sockrepl_units_dispatched_total",
		"sockrepl_unit_dispatch_duration_seconds",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(body, metric) {
			t.Errorf("Expected metric %s not found in output", metric)
		}
	}
}

func TestRegistry(t *testing.T) {
	m := NewMetrics()

	if m.Registry() == nil {
		t.Fatal("Registry returned nil")
	}

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	// Only non-vector metrics are emitted before anything is recorded.
	if len(families) == 0 {
		t.Error("expected at least one metric family")
	}
}
