package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == name {
			var total float64
			for _, m := range mf.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			return total
		}
	}
	t.Fatalf("%s metric not found", name)
	return 0
}

// TestRecordProbe_IncrementsCounter は在庫確認カウンタが増加することを検証する。
func TestRecordProbe_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProbe("live", 120*time.Millisecond)
	c.RecordProbe("live", 80*time.Millisecond)
	c.RecordProbe("error", 5*time.Second)

	if val := counterValue(t, reg, "passalarm_probe_total"); val != 3 {
		t.Errorf("probe_total = %v, want 3", val)
	}
}

// TestRecordTransition_IncrementsCounter は遷移カウンタが増加することを検証する。
func TestRecordTransition_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTransition("gold")

	if val := counterValue(t, reg, "passalarm_availability_transitions_total"); val != 1 {
		t.Errorf("transitions_total = %v, want 1", val)
	}
}

// TestRecordNotification_LabelsByResult は配信結果別のカウントを検証する。
func TestRecordNotification_LabelsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordNotification("EMAIL", true)
	c.RecordNotification("SMS", true)
	c.RecordNotification("SMS", false)

	if val := counterValue(t, reg, "passalarm_notifications_total"); val != 3 {
		t.Errorf("notifications_total = %v, want 3", val)
	}
}

// TestHandler_ServesMetrics は/metricsエンドポイントの公開を検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordHTTPStatus(200)

	server := httptest.NewServer(SetupMetricsRoute(reg))
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("failed to GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "passalarm_http_status_total") {
		t.Error("expected passalarm_http_status_total in metrics output")
	}
}
