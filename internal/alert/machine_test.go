// 本文件用于告警状态机的单元测试
package alert

import (
	"strings"
	"testing"
	"time"
)

var t0 = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func TestCooldownReady(t *testing.T) {
	c := Cooldown{Period: time.Minute}
	if !c.Ready(t0) {
		t.Fatal("从未触发应可触发")
	}
	c.Mark(t0)
	if c.Ready(t0.Add(59 * time.Second)) {
		t.Fatal("冷却期内不应可触发")
	}
	if got := c.Remaining(t0.Add(45 * time.Second)); got != 15*time.Second {
		t.Fatalf("剩余冷却期望 15s, 实际 %s", got)
	}
	if !c.Ready(t0.Add(time.Minute)) {
		t.Fatal("冷却期满应可触发")
	}
	if !c.LastFiredAt().Equal(t0) {
		t.Fatalf("LastFiredAt 异常: %s", c.LastFiredAt())
	}
}

func TestLevelMachineFiresOncePerEpisode(t *testing.T) {
	m := NewLevelMachine(5*time.Minute, 5*time.Minute)

	out := m.Evaluate(true, t0)
	if len(out) != 1 || !out[0].Fire || out[0].Category != CategoryErrorRateHigh {
		t.Fatalf("首次超出应触发 high: %+v", out)
	}
	for i := 1; i <= 10; i++ {
		if out := m.Evaluate(true, t0.Add(time.Duration(i)*time.Second)); len(out) != 0 {
			t.Fatalf("持续超出不应重复触发: %+v", out)
		}
	}
	if !m.Active() {
		t.Fatal("应处于 Active")
	}

	out = m.Evaluate(false, t0.Add(time.Minute))
	if len(out) != 1 || !out[0].Fire || out[0].Category != CategoryErrorRateRecovered {
		t.Fatalf("回落应触发 recovered: %+v", out)
	}
	if m.Active() {
		t.Fatal("回落后应为 Quiescent")
	}
	if out := m.Evaluate(false, t0.Add(2*time.Minute)); len(out) != 0 {
		t.Fatalf("Quiescent 下低于阈值不应产生决策: %+v", out)
	}
}

func TestLevelMachineDefersDuringCooldown(t *testing.T) {
	m := NewLevelMachine(5*time.Minute, 0)
	m.Evaluate(true, t0)
	m.Evaluate(false, t0.Add(time.Minute))

	// 冷却期内再次超出 记录一次抑制 不排队
	out := m.Evaluate(true, t0.Add(2*time.Minute))
	if len(out) != 1 || out[0].Fire || !strings.Contains(out[0].Reason, "冷却中") {
		t.Fatalf("冷却期内应抑制: %+v", out)
	}
	if out := m.Evaluate(true, t0.Add(3*time.Minute)); len(out) != 0 {
		t.Fatalf("同一段延迟只记录一次: %+v", out)
	}
	if m.Active() {
		t.Fatal("抑制期间状态保持 Quiescent")
	}

	// 冷却期满且条件仍成立 此时触发
	out = m.Evaluate(true, t0.Add(5*time.Minute))
	if len(out) != 1 || !out[0].Fire {
		t.Fatalf("冷却期满应触发: %+v", out)
	}
}

func TestLevelMachineRecoveredCooldownIndependent(t *testing.T) {
	m := NewLevelMachine(0, 10*time.Minute)
	m.Evaluate(true, t0)
	if out := m.Evaluate(false, t0.Add(time.Second)); len(out) != 1 || !out[0].Fire {
		t.Fatalf("首次回落应触发: %+v", out)
	}
	if out := m.Evaluate(true, t0.Add(2*time.Second)); len(out) != 1 || !out[0].Fire {
		t.Fatalf("high 冷却为 0 应再次触发: %+v", out)
	}
	out := m.Evaluate(false, t0.Add(3*time.Second))
	if len(out) != 1 || out[0].Fire || out[0].Category != CategoryErrorRateRecovered {
		t.Fatalf("recovered 冷却期内应抑制: %+v", out)
	}
	if m.Active() {
		t.Fatal("抑制回落通知时状态仍应回到 Quiescent")
	}
}

func TestEdgeMachineCooldown(t *testing.T) {
	m := NewEdgeMachine(CategoryFailover, 5*time.Minute)
	if out := m.Trigger(t0); !out.Fire {
		t.Fatal("首次边沿应触发")
	}
	if out := m.Trigger(t0.Add(time.Minute)); out.Fire {
		t.Fatal("冷却期内边沿应抑制")
	}
	if out := m.Trigger(t0.Add(5 * time.Minute)); !out.Fire {
		t.Fatal("冷却期满边沿应触发")
	}
}

func TestHistoryKeepsLatest(t *testing.T) {
	h := NewHistory()
	for i := 0; i < maxDecisionRecords+5; i++ {
		h.Record(Alert{ID: "x", Category: CategoryFailover, Time: t0.Add(time.Duration(i) * time.Second)}, StatusSent, "")
	}
	h.Record(Alert{Category: CategoryRecovery, Time: t0}, StatusSuppressed, "冷却中")

	decisions := h.Decisions()
	if len(decisions) != maxDecisionRecords {
		t.Fatalf("决策数量期望 %d, 实际 %d", maxDecisionRecords, len(decisions))
	}
	if decisions[0].Category != CategoryRecovery || decisions[0].Status != StatusSuppressed {
		t.Fatalf("最新决策应排在最前: %+v", decisions[0])
	}
	stats := h.Stats()
	if stats.Sent != maxDecisionRecords+5 || stats.Suppressed != 1 {
		t.Fatalf("统计异常: %+v", stats)
	}
}

func TestMarkdownIncludesContext(t *testing.T) {
	a := Alert{
		Category:    CategoryFailover,
		FromPool:    "blue",
		ToPool:      "green",
		Release:     "green-v2",
		PrevRelease: "blue-v1",
		Fill:        200,
		Time:        t0,
	}
	got := Markdown(a)
	for _, want := range []string{"Failover Detected", "PRIMARY (BLUE) → BACKUP (GREEN)", "`green-v2` (was `blue-v1`)", "2026-10-17 09:00:00"} {
		if !strings.Contains(got, want) {
			t.Fatalf("markdown 缺少 %q: %s", want, got)
		}
	}

	rate := Markdown(Alert{Category: CategoryErrorRateHigh, Ratio: 0.025, Threshold: 0.02, Errors: 5, Fill: 200, WindowSize: 200, Pool: "blue"})
	for _, want := range []string{"`2.5%`", "`2.0%`", "`5/200`", "`BLUE`"} {
		if !strings.Contains(rate, want) {
			t.Fatalf("markdown 缺少 %q: %s", want, rate)
		}
	}
}
