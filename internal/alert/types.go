// 本文件用于定义告警相关的数据结构
package alert

import (
	"context"
	"time"
)

// Category 表示告警分类 每个分类有独立的状态机与冷却
type Category string

const (
	// CategoryErrorRateHigh 表示错误率超过阈值
	CategoryErrorRateHigh Category = "error_rate_high"
	// CategoryErrorRateRecovered 表示错误率回落
	CategoryErrorRateRecovered Category = "error_rate_recovered"
	// CategoryFailover 表示主池切到备池
	CategoryFailover Category = "failover"
	// CategoryRecovery 表示备池切回主池
	CategoryRecovery Category = "recovery"
)

// Categories 返回全部分类 顺序固定
func Categories() []Category {
	return []Category{CategoryErrorRateHigh, CategoryErrorRateRecovered, CategoryFailover, CategoryRecovery}
}

// Severity 表示告警级别
type Severity string

const (
	// SeverityCritical 表示需要立即处理
	SeverityCritical Severity = "critical"
	// SeverityWarning 表示需要关注
	SeverityWarning Severity = "warning"
	// SeverityInfo 表示恢复类通知
	SeverityInfo Severity = "info"
)

// SeverityOf 返回分类对应的级别
func SeverityOf(c Category) Severity {
	switch c {
	case CategoryErrorRateHigh:
		return SeverityCritical
	case CategoryFailover:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// DecisionStatus 表示告警决策状态
type DecisionStatus string

const (
	// StatusSent 表示已交给通知队列
	StatusSent DecisionStatus = "sent"
	// StatusSuppressed 表示冷却期内被抑制
	StatusSuppressed DecisionStatus = "suppressed"
	// StatusMaintenance 表示维护模式下未发送 状态按已发送推进
	StatusMaintenance DecisionStatus = "maintenance"
	// StatusDropped 表示通知队列已满被丢弃
	StatusDropped DecisionStatus = "dropped"
	// StatusLogged 表示未配置 webhook 仅记录日志
	StatusLogged DecisionStatus = "logged"
)

// Alert 表示一条待发送的告警
type Alert struct {
	ID          string    `json:"id"`
	Category    Category  `json:"category"`
	Severity    Severity  `json:"severity"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Pool        string    `json:"pool,omitempty"`
	FromPool    string    `json:"fromPool,omitempty"`
	ToPool      string    `json:"toPool,omitempty"`
	Release     string    `json:"release,omitempty"`
	PrevRelease string    `json:"prevRelease,omitempty"`
	Ratio       float64   `json:"ratio"`
	Threshold   float64   `json:"threshold"`
	Errors      int       `json:"errors"`
	Fill        int       `json:"fill"`
	WindowSize  int       `json:"windowSize"`
	Environment string    `json:"environment,omitempty"`
	Time        time.Time `json:"time"`
}

// Notifier 表示告警通知发送器
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// NotifierFunc 允许用函数实现 Notifier
type NotifierFunc func(ctx context.Context, a Alert) error

// Notify 调用函数本身
func (f NotifierFunc) Notify(ctx context.Context, a Alert) error {
	return f(ctx, a)
}
