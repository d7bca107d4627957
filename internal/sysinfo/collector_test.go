package sysinfo

import (
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestSnapshotSelf(t *testing.T) {
	c, err := NewCollector(time.Minute)
	if err != nil {
		t.Fatalf("new collector failed: %v", err)
	}
	snap := c.Snapshot()
	if snap.PID != int32(os.Getpid()) {
		t.Fatalf("unexpected pid: %d", snap.PID)
	}
	if snap.Goroutines <= 0 {
		t.Fatalf("goroutines should be positive: %d", snap.Goroutines)
	}
	if snap.LastUpdated == "" || snap.RSS == "" {
		t.Fatalf("snapshot missing fields: %+v", snap)
	}
	// TTL 内返回缓存
	if again := c.Snapshot(); again.LastUpdated != snap.LastUpdated {
		t.Fatalf("snapshot should be cached")
	}
}

func TestRegister(t *testing.T) {
	c, err := NewCollector(0)
	if err != nil {
		t.Fatalf("new collector failed: %v", err)
	}
	reg := prometheus.NewRegistry()
	if err := c.Register(reg); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if len(families) != 3 {
		t.Fatalf("expected 3 metric families, got %d", len(families))
	}
	if err := c.Register(reg); err == nil {
		t.Fatal("duplicate register should fail")
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := formatBytes(1536); got != "1.5 KB" {
		t.Fatalf("unexpected bytes label: %s", got)
	}
	if got := formatBytes(12); got != "12 B" {
		t.Fatalf("unexpected bytes label: %s", got)
	}
	if got := formatDurationCN(26 * time.Hour); got != "1天2小时" {
		t.Fatalf("unexpected duration label: %s", got)
	}
	if got := formatDurationCN(90 * time.Minute); got != "1小时30分钟" {
		t.Fatalf("unexpected duration label: %s", got)
	}
}
