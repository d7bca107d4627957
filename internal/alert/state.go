package alert

import (
	"sync"
	"time"
)

const maxDecisionRecords = 200

// Decision 表示一次告警决策 对外展示用
type Decision struct {
	ID       string         `json:"id"`
	Time     string         `json:"time"`
	Category Category       `json:"category"`
	Severity Severity       `json:"severity"`
	Message  string         `json:"message"`
	Pool     string         `json:"pool,omitempty"`
	Release  string         `json:"release,omitempty"`
	Status   DecisionStatus `json:"status"`
	Reason   string         `json:"reason,omitempty"`
}

// Stats 表示告警统计
type Stats struct {
	Sent        int `json:"sent"`
	Suppressed  int `json:"suppressed"`
	Maintenance int `json:"maintenance"`
	Dropped     int `json:"dropped"`
	Logged      int `json:"logged"`
}

// CategoryState 表示单个分类的运行态
type CategoryState struct {
	Category    Category `json:"category"`
	Active      bool     `json:"active"`
	LastFiredAt string   `json:"lastFiredAt,omitempty"`
	Cooldown    string   `json:"cooldown"`
	Remaining   string   `json:"remaining,omitempty"`
	Sent        int      `json:"sent"`
	Suppressed  int      `json:"suppressed"`
}

type decisionRecord struct {
	alert  Alert
	at     time.Time
	status DecisionStatus
	reason string
}

// History 维护最近的告警决策 仅保存在内存中
type History struct {
	mu      sync.RWMutex
	records []decisionRecord
	stats   Stats
}

// NewHistory 创建决策记录
func NewHistory() *History {
	return &History{
		records: make([]decisionRecord, 0, maxDecisionRecords),
	}
}

// Record 记录告警决策
func (h *History) Record(a Alert, status DecisionStatus, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = append(h.records, decisionRecord{alert: a, at: a.Time, status: status, reason: reason})
	if len(h.records) > maxDecisionRecords {
		h.records = append([]decisionRecord(nil), h.records[len(h.records)-maxDecisionRecords:]...)
	}

	switch status {
	case StatusSent:
		h.stats.Sent++
	case StatusSuppressed:
		h.stats.Suppressed++
	case StatusMaintenance:
		h.stats.Maintenance++
	case StatusDropped:
		h.stats.Dropped++
	case StatusLogged:
		h.stats.Logged++
	}
}

// Stats 返回统计
func (h *History) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stats
}

// Decisions 按从新到旧的顺序输出决策
func (h *History) Decisions() []Decision {
	h.mu.RLock()
	records := append([]decisionRecord(nil), h.records...)
	h.mu.RUnlock()

	out := make([]Decision, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		pool := rec.alert.Pool
		if pool == "" {
			pool = rec.alert.ToPool
		}
		out = append(out, Decision{
			ID:       rec.alert.ID,
			Time:     FormatTime(rec.at),
			Category: rec.alert.Category,
			Severity: rec.alert.Severity,
			Message:  Headline(rec.alert),
			Pool:     pool,
			Release:  rec.alert.Release,
			Status:   rec.status,
			Reason:   rec.reason,
		})
	}
	return out
}

// Count 返回指定分类与状态的决策数 仅统计仍保留在内存中的记录
func (h *History) Count(category Category, status DecisionStatus) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, rec := range h.records {
		if rec.alert.Category == category && rec.status == status {
			n++
		}
	}
	return n
}
