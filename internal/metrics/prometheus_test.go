// 本文件用于 Prometheus 指标测试 保障指标文本格式与核心字段可用

package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func render(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read metrics body failed: %v", err)
	}
	return string(body)
}

func TestCollectorRenderPrometheus(t *testing.T) {
	collector := NewCollector()

	collector.IncLine()
	collector.IncLine()
	collector.IncParseFailure()
	collector.IncReadError()
	collector.ObserveRecord("blue", true)
	collector.SetWindow(0.025, 200, 5)
	collector.SetActivePool("green", "blue", "green")
	collector.IncTransition("failover")
	collector.IncDecision("failover", "sent")
	collector.SetMaintenance(true)
	collector.ObserveDelivery("slack", ResultSuccess, 350*time.Millisecond)
	collector.ObserveDelivery("slack", ResultDropped, 0)
	collector.SetQueueLength(7)

	out := render(t, collector)

	mustContain := []string{
		"pool_watch_lines_read_total 2",
		"pool_watch_parse_failures_total 1",
		"pool_watch_read_errors_total 1",
		`pool_watch_records_total{error="true",pool="blue"} 1`,
		"pool_watch_window_error_ratio 0.025",
		"pool_watch_window_fill 200",
		"pool_watch_window_errors 5",
		`pool_watch_active_pool{pool="blue"} 0`,
		`pool_watch_active_pool{pool="green"} 1`,
		`pool_watch_transitions_total{kind="failover"} 1`,
		`pool_watch_alert_decisions_total{category="failover",status="sent"} 1`,
		"pool_watch_maintenance_mode 1",
		`pool_watch_deliveries_total{result="success",sink="slack"} 1`,
		`pool_watch_deliveries_total{result="dropped",sink="slack"} 1`,
		`pool_watch_delivery_latency_seconds_count{sink="slack"} 1`,
		"pool_watch_notify_queue_length 7",
	}
	for _, token := range mustContain {
		if !strings.Contains(out, token) {
			t.Fatalf("prometheus output missing token %q\noutput:\n%s", token, out)
		}
	}
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.IncLine()
	c.ObserveRecord("blue", false)
	c.SetWindow(1, 1, 1)
	c.ObserveDelivery("slack", ResultError, time.Second)
	if c.Registry() != nil {
		t.Fatal("nil collector should have nil registry")
	}
	if err := c.RegisterRuntime(); err != nil {
		t.Fatalf("nil collector runtime register: %v", err)
	}
}

func TestRegisterRuntime(t *testing.T) {
	c := NewCollector()
	if err := c.RegisterRuntime(); err != nil {
		t.Fatalf("register runtime failed: %v", err)
	}
	if out := render(t, c); !strings.Contains(out, "go_goroutines") {
		t.Fatalf("runtime metrics missing:\n%s", out)
	}
}
