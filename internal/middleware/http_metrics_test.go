package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/shortlists", "/shortlists"},
		{"/shortlists/async", "/shortlists/async"},
		{"/proposals", "/proposals"},
		{"/messages", "/messages"},
		{"/metrics", "/metrics"},
		{"/jobs/8b9f/shortlist", "/jobs/{id}/shortlist"},
		{"/jobs/8b9f", "/jobs/{id}"},
		{"/jobs//shortlist", "other"},
		{"/wp-admin/setup.php", "other"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.want {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func findMetric(t *testing.T, reg *prometheus.Registry, name string) []*dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f.GetMetric()
		}
	}
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func TestHTTPMetrics_Records(t *testing.T) {
	metrics := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{}`))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/jobs/x/shortlist", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	got := findMetric(t, reg, MetricHTTPRequestsTotal)
	if len(got) != 1 {
		t.Fatalf("expected one series (health excluded), got %d", len(got))
	}
	if labelValue(got[0], "path") != "/jobs/{id}/shortlist" || labelValue(got[0], "status") != "404" {
		t.Errorf("unexpected labels %v", got[0].GetLabel())
	}
	if got[0].GetCounter().GetValue() != 1 {
		t.Errorf("expected count 1, got %v", got[0].GetCounter().GetValue())
	}
}

func TestMetrics_RegisterTwiceFails(t *testing.T) {
	metrics := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if err := metrics.Register(reg); err == nil {
		t.Error("expected duplicate registration error")
	}
}
