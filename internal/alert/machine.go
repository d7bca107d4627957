// 本文件用于告警状态机与冷却判定
package alert

import (
	"fmt"
	"time"
)

// Cooldown 记录分类最近一次触发时间
// 冷却期内的触发不排队 条件仍成立时由后续判定再次尝试
type Cooldown struct {
	Period time.Duration
	last   time.Time
}

// Ready 返回是否已过冷却期 从未触发视为可触发
func (c *Cooldown) Ready(now time.Time) bool {
	return c.last.IsZero() || now.Sub(c.last) >= c.Period
}

// Remaining 返回剩余冷却时间
func (c *Cooldown) Remaining(now time.Time) time.Duration {
	if c.Ready(now) {
		return 0
	}
	return c.Period - now.Sub(c.last)
}

// Mark 记录一次触发
func (c *Cooldown) Mark(now time.Time) {
	c.last = now
}

// LastFiredAt 返回最近触发时间 从未触发为零值
func (c *Cooldown) LastFiredAt() time.Time {
	return c.last
}

// Outcome 表示状态机单次判定结果
type Outcome struct {
	Category Category
	Fire     bool
	Reason   string
}

func suppressedOutcome(category Category, c *Cooldown, now time.Time) Outcome {
	return Outcome{
		Category: category,
		Reason:   fmt.Sprintf("冷却中 剩余%s", formatDuration(c.Remaining(now))),
	}
}

// LevelMachine 错误率状态机 Quiescent 与 Active 两态
// 升高与回落两类通知各自冷却
type LevelMachine struct {
	high      Cooldown
	recovered Cooldown
	active    bool
	deferred  bool
}

// NewLevelMachine 创建错误率状态机
func NewLevelMachine(highCooldown, recoveredCooldown time.Duration) *LevelMachine {
	return &LevelMachine{
		high:      Cooldown{Period: highCooldown},
		recovered: Cooldown{Period: recoveredCooldown},
	}
}

// Evaluate 根据本次窗口判定推进状态
// exceeds 为错误率严格超过阈值 返回值为空表示无需记录
func (m *LevelMachine) Evaluate(exceeds bool, now time.Time) []Outcome {
	switch {
	case exceeds && !m.active:
		if !m.high.Ready(now) {
			// 同一段延迟只记录一次抑制 避免每行日志都写入决策
			if m.deferred {
				return nil
			}
			m.deferred = true
			return []Outcome{suppressedOutcome(CategoryErrorRateHigh, &m.high, now)}
		}
		m.active = true
		m.deferred = false
		m.high.Mark(now)
		return []Outcome{{Category: CategoryErrorRateHigh, Fire: true}}
	case !exceeds && m.active:
		m.active = false
		if !m.recovered.Ready(now) {
			return []Outcome{suppressedOutcome(CategoryErrorRateRecovered, &m.recovered, now)}
		}
		m.recovered.Mark(now)
		return []Outcome{{Category: CategoryErrorRateRecovered, Fire: true}}
	case !exceeds:
		m.deferred = false
	}
	return nil
}

// Active 返回错误率是否处于持续告警状态
func (m *LevelMachine) Active() bool {
	return m.active
}

// HighCooldown 返回升高通知的冷却
func (m *LevelMachine) HighCooldown() *Cooldown {
	return &m.high
}

// RecoveredCooldown 返回回落通知的冷却
func (m *LevelMachine) RecoveredCooldown() *Cooldown {
	return &m.recovered
}

// EdgeMachine 边沿触发的分类 每个边沿只受冷却约束
type EdgeMachine struct {
	category Category
	cooldown Cooldown
}

// NewEdgeMachine 创建边沿状态机
func NewEdgeMachine(category Category, cooldown time.Duration) *EdgeMachine {
	return &EdgeMachine{category: category, cooldown: Cooldown{Period: cooldown}}
}

// Trigger 处理一次检测到的边沿
func (m *EdgeMachine) Trigger(now time.Time) Outcome {
	if !m.cooldown.Ready(now) {
		return suppressedOutcome(m.category, &m.cooldown, now)
	}
	m.cooldown.Mark(now)
	return Outcome{Category: m.category, Fire: true}
}

// Category 返回分类
func (m *EdgeMachine) Category() Category {
	return m.category
}

// Cooldown 返回冷却
func (m *EdgeMachine) Cooldown() *Cooldown {
	return &m.cooldown
}

