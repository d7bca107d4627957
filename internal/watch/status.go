package watch

import (
	"time"

	"pool-watch/internal/alert"
)

// WindowStatus 窗口状态
type WindowStatus struct {
	Fill      int     `json:"fill"`
	Capacity  int     `json:"capacity"`
	Errors    int     `json:"errors"`
	Ratio     float64 `json:"ratio"`
	RatioText string  `json:"ratioText"`
	Threshold float64 `json:"threshold"`
	MinFill   int     `json:"minFill"`
	Ready     bool    `json:"ready"`
}

// PoolStatus 当前服务池
type PoolStatus struct {
	Pool           string `json:"pool"`
	Label          string `json:"label"`
	Release        string `json:"release,omitempty"`
	PrevRelease    string `json:"prevRelease,omitempty"`
	Established    bool   `json:"established"`
	LastTransition string `json:"lastTransition,omitempty"`
	Failovers      int    `json:"failovers"`
	Recoveries     int    `json:"recoveries"`
	UnknownRecords int    `json:"unknownRecords"`
}

// Status 管道快照
type Status struct {
	Lines         uint64                `json:"lines"`
	Parsed        uint64                `json:"parsed"`
	ParseFailures uint64                `json:"parseFailures"`
	LastLineAt    string                `json:"lastLineAt,omitempty"`
	Maintenance   bool                  `json:"maintenance"`
	Window        WindowStatus          `json:"window"`
	Pool          PoolStatus            `json:"pool"`
	Categories    []alert.CategoryState `json:"categories"`
	Stats         alert.Stats           `json:"stats"`
}

// Status 返回快照 可在其他协程调用
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.evalAt
	fill := p.window.Len()
	state := p.tracker.State()

	st := Status{
		Lines:         p.lines,
		Parsed:        p.parsed,
		ParseFailures: p.parseFailures,
		LastLineAt:    alert.FormatTime(p.lastLineAt),
		Maintenance:   p.maintenance(),
		Window: WindowStatus{
			Fill:      fill,
			Capacity:  p.window.Cap(),
			Errors:    p.window.Errors(),
			Ratio:     p.lastRatio,
			RatioText: alert.FormatPercent(p.lastRatio),
			Threshold: p.evaluator.Threshold,
			MinFill:   p.evaluator.MinFill,
			Ready:     p.evaluator.Ready(fill),
		},
		Pool: PoolStatus{
			Pool:           string(state.Pool),
			Label:          p.pools.Label(state.Pool),
			Release:        state.Release,
			PrevRelease:    state.PrevRelease,
			Established:    state.Established,
			LastTransition: alert.FormatTime(state.LastTransition),
			Failovers:      state.Failovers,
			Recoveries:     state.Recoveries,
			UnknownRecords: state.Unknown,
		},
		Stats: p.history.Stats(),
	}

	st.Categories = []alert.CategoryState{
		p.categoryState(alert.CategoryErrorRateHigh, p.level.HighCooldown(), p.level.Active(), now),
		p.categoryState(alert.CategoryErrorRateRecovered, p.level.RecoveredCooldown(), false, now),
		p.categoryState(p.failover.Category(), p.failover.Cooldown(), false, now),
		p.categoryState(p.recovery.Category(), p.recovery.Cooldown(), false, now),
	}
	return st
}

// categoryState 计数只覆盖内存中保留的决策
func (p *Pipeline) categoryState(category alert.Category, c *alert.Cooldown, active bool, now time.Time) alert.CategoryState {
	out := alert.CategoryState{
		Category:    category,
		Active:      active,
		LastFiredAt: alert.FormatTime(c.LastFiredAt()),
		Cooldown:    c.Period.String(),
		Sent:        p.history.Count(category, alert.StatusSent),
		Suppressed:  p.history.Count(category, alert.StatusSuppressed),
	}
	if remaining := c.Remaining(now); remaining > 0 {
		out.Remaining = remaining.Round(time.Second).String()
	}
	return out
}
