// 本文件用于生成告警文案
package alert

import (
	"fmt"
	"strings"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

// Title 返回告警标题
func Title(a Alert) string {
	switch a.Category {
	case CategoryErrorRateHigh:
		return "High Error Rate Detected"
	case CategoryErrorRateRecovered:
		return "Error Rate Recovered"
	case CategoryFailover:
		return "Failover Detected"
	case CategoryRecovery:
		return "Service Recovery"
	default:
		return "Pool Watch Alert"
	}
}

// Headline 返回一行摘要 用于日志与纯文本渠道
func Headline(a Alert) string {
	switch a.Category {
	case CategoryErrorRateHigh:
		return fmt.Sprintf("high error rate: %s > %s (%d/%d requests, pool %s)",
			FormatPercent(a.Ratio), FormatPercent(a.Threshold), a.Errors, a.Fill, upper(a.Pool))
	case CategoryErrorRateRecovered:
		return fmt.Sprintf("error rate recovered: %s <= %s (%d/%d requests)",
			FormatPercent(a.Ratio), FormatPercent(a.Threshold), a.Errors, a.Fill)
	case CategoryFailover:
		return fmt.Sprintf("failover detected: PRIMARY (%s) → BACKUP (%s)", upper(a.FromPool), upper(a.ToPool))
	case CategoryRecovery:
		return fmt.Sprintf("service recovery: BACKUP (%s) → PRIMARY (%s)", upper(a.FromPool), upper(a.ToPool))
	default:
		return string(a.Category)
	}
}

// Markdown 返回 markdown 正文 Slack mrkdwn 与钉钉/企业微信 markdown 共用
func Markdown(a Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", Title(a))
	b.WriteString(Headline(a))
	b.WriteString("\n")
	switch a.Category {
	case CategoryErrorRateHigh, CategoryErrorRateRecovered:
		fmt.Fprintf(&b, "• Current Rate: `%s`\n", FormatPercent(a.Ratio))
		fmt.Fprintf(&b, "• Threshold: `%s`\n", FormatPercent(a.Threshold))
		fmt.Fprintf(&b, "• Errors: `%d/%d` requests\n", a.Errors, a.Fill)
		fmt.Fprintf(&b, "• Window: last `%d` requests\n", a.WindowSize)
		if a.Pool != "" {
			fmt.Fprintf(&b, "• Pool: `%s`\n", upper(a.Pool))
		}
	case CategoryFailover, CategoryRecovery:
		fmt.Fprintf(&b, "• From: *%s* pool\n", upper(a.FromPool))
		fmt.Fprintf(&b, "• To: *%s* pool\n", upper(a.ToPool))
		fmt.Fprintf(&b, "• Error rate: `%s` over `%d` requests\n", FormatPercent(a.Ratio), a.Fill)
	}
	if a.Release != "" {
		if a.PrevRelease != "" && a.PrevRelease != a.Release {
			fmt.Fprintf(&b, "• Release: `%s` (was `%s`)\n", a.Release, a.PrevRelease)
		} else {
			fmt.Fprintf(&b, "• Release: `%s`\n", a.Release)
		}
	}
	if a.Environment != "" {
		fmt.Fprintf(&b, "• Environment: `%s`\n", a.Environment)
	}
	fmt.Fprintf(&b, "• Time: %s", FormatTime(a.Time))
	return b.String()
}

// FormatPercent 以百分比输出比例
func FormatPercent(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

// FormatTime 统一时间展示
func FormatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Format(timeLayout)
}

func upper(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(s)
}

// formatDuration 用于格式化输出内容
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0秒"
	}
	if d >= time.Hour {
		hours := int(d.Round(time.Minute).Hours())
		if hours <= 0 {
			hours = 1
		}
		return fmt.Sprintf("%d小时", hours)
	}
	if d >= time.Minute {
		minutes := int(d.Round(time.Second).Minutes())
		if minutes <= 0 {
			minutes = 1
		}
		return fmt.Sprintf("%d分钟", minutes)
	}
	seconds := int(d.Round(time.Second).Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return fmt.Sprintf("%d秒", seconds)
}
