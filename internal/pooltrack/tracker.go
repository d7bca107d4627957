// Package pooltrack 跟踪当前服务池与版本 检测主备切换边沿
package pooltrack

import (
	"time"

	"pool-watch/internal/accesslog"
)

// Kind 表示一次观察的结果
type Kind string

const (
	// NoChange 表示池未变化 首条已知记录建立基线时也返回该值
	NoChange Kind = "no_change"
	// Failover 表示主池切到备池
	Failover Kind = "failover"
	// Recovery 表示备池切回主池
	Recovery Kind = "recovery"
	// UnknownTransition 表示任一侧未知 仅记录不告警
	UnknownTransition Kind = "unknown_transition"
)

// Transition 表示一次观察的结果与上下文
type Transition struct {
	Kind           Kind
	From           accesslog.Pool
	To             accesslog.Pool
	Release        string
	PrevRelease    string
	ReleaseChanged bool
	At             time.Time
}

// State 表示跟踪器快照
type State struct {
	Pool           accesslog.Pool `json:"pool"`
	Release        string         `json:"release"`
	PrevRelease    string         `json:"prevRelease,omitempty"`
	Established    bool           `json:"established"`
	LastTransition time.Time      `json:"lastTransition,omitempty"`
	Failovers      int            `json:"failovers"`
	Recoveries     int            `json:"recoveries"`
	Unknown        int            `json:"unknown"`
}

// Tracker 保存最近一次观察到的已知池
// 比较对象是上一条已知记录 而不是窗口起点 因此是边沿触发
type Tracker struct {
	state State
}

// New 创建跟踪器 initial 非未知时作为初始基线
func New(initial accesslog.Pool) *Tracker {
	t := &Tracker{state: State{Pool: accesslog.PoolUnknown}}
	if initial.Known() {
		t.state.Pool = initial
		t.state.Established = true
	}
	return t
}

// Observe 用一条记录推进状态并返回切换结果
func (t *Tracker) Observe(rec accesslog.Record) Transition {
	prev := t.state.Pool
	out := Transition{
		From:        prev,
		To:          rec.Pool,
		Release:     t.state.Release,
		PrevRelease: t.state.PrevRelease,
		At:          rec.Time,
	}

	if !rec.Pool.Known() {
		t.state.Unknown++
		out.Kind = UnknownTransition
		return out
	}

	if rec.Release != "" && rec.Release != t.state.Release {
		if t.state.Release != "" {
			out.ReleaseChanged = true
		}
		t.state.PrevRelease = t.state.Release
		t.state.Release = rec.Release
	}
	out.Release = t.state.Release
	out.PrevRelease = t.state.PrevRelease

	if !t.state.Established {
		t.state.Pool = rec.Pool
		t.state.Established = true
		out.Kind = NoChange
		return out
	}

	t.state.Pool = rec.Pool
	switch {
	case prev == accesslog.PoolPrimary && rec.Pool == accesslog.PoolBackup:
		out.Kind = Failover
		t.state.Failovers++
		t.state.LastTransition = rec.Time
	case prev == accesslog.PoolBackup && rec.Pool == accesslog.PoolPrimary:
		out.Kind = Recovery
		t.state.Recoveries++
		t.state.LastTransition = rec.Time
	default:
		out.Kind = NoChange
	}
	return out
}

// State 返回当前快照
func (t *Tracker) State() State {
	return t.state
}
