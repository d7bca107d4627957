// 本文件用于把告警适配到各通知渠道
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pool-watch/internal/alert"
	"pool-watch/internal/dingtalk"
	"pool-watch/internal/models"
	"pool-watch/internal/slack"
	"pool-watch/internal/wechat"
)

// 支持的渠道类型
const (
	KindSlack    = "slack"
	KindDingTalk = "dingtalk"
	KindWeChat   = "wechat"
	KindGeneric  = "generic"
)

// SlackSink Slack incoming webhook
type SlackSink struct {
	hook *slack.Webhook
}

// NewSlackSink 创建 Slack 渠道
func NewSlackSink(url string) *SlackSink {
	return &SlackSink{hook: slack.NewWebhook(url)}
}

// Name 返回渠道名
func (s *SlackSink) Name() string { return KindSlack }

// Notify 发送告警
func (s *SlackSink) Notify(ctx context.Context, a alert.Alert) error {
	return s.hook.Send(ctx, slack.Message{
		Text:     alert.Headline(a),
		Markdown: alert.Markdown(a),
		Fields:   Fields(a),
	})
}

// DingTalkSink 钉钉机器人
type DingTalkSink struct {
	robot *dingtalk.Robot
}

// NewDingTalkSink 创建钉钉渠道
func NewDingTalkSink(url, secret string) *DingTalkSink {
	return &DingTalkSink{robot: dingtalk.NewRobot(url, secret)}
}

// Name 返回渠道名
func (s *DingTalkSink) Name() string { return KindDingTalk }

// Notify 发送告警
func (s *DingTalkSink) Notify(ctx context.Context, a alert.Alert) error {
	return s.robot.SendMarkdown(ctx, alert.Title(a), alert.Markdown(a))
}

// WeChatSink 企业微信机器人
type WeChatSink struct {
	robot *wechat.Robot
}

// NewWeChatSink 创建企业微信渠道
func NewWeChatSink(url string) *WeChatSink {
	return &WeChatSink{robot: wechat.NewRobot(url)}
}

// Name 返回渠道名
func (s *WeChatSink) Name() string { return KindWeChat }

// Notify 发送告警
func (s *WeChatSink) Notify(ctx context.Context, a alert.Alert) error {
	return s.robot.SendMarkdown(ctx, alert.Title(a), alert.Markdown(a))
}

// GenericSink 以 JSON 形式 POST 告警本身
type GenericSink struct {
	url    string
	client *http.Client
}

// NewGenericSink 创建通用 webhook 渠道
func NewGenericSink(url string) *GenericSink {
	return &GenericSink{url: strings.TrimSpace(url), client: &http.Client{Timeout: 10 * time.Second}}
}

// Name 返回渠道名
func (s *GenericSink) Name() string { return KindGeneric }

// Notify 发送告警 2xx 视为成功
func (s *GenericSink) Notify(ctx context.Context, a alert.Alert) error {
	if a.Title == "" {
		a.Title = alert.Title(a)
	}
	if a.Message == "" {
		a.Message = alert.Headline(a)
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("序列化告警失败: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook 状态码异常: %d", resp.StatusCode)
	}
	return nil
}

// NewSink 按配置创建渠道 未配置地址时返回 nil 告警只记录日志
func NewSink(cfg *models.Config) (Sink, error) {
	url := strings.TrimSpace(cfg.WebhookURL)
	if url == "" {
		return nil, nil
	}
	switch strings.ToLower(strings.TrimSpace(cfg.WebhookKind)) {
	case "", KindSlack:
		return NewSlackSink(url), nil
	case KindDingTalk:
		return NewDingTalkSink(url, cfg.WebhookSecret), nil
	case KindWeChat:
		return NewWeChatSink(url), nil
	case KindGeneric:
		return NewGenericSink(url), nil
	default:
		return nil, fmt.Errorf("不支持的 webhook 类型: %s", cfg.WebhookKind)
	}
}

// Fields 返回告警的结构化字段 供 Slack metadata 使用
func Fields(a alert.Alert) map[string]any {
	fields := map[string]any{
		"id":       a.ID,
		"category": string(a.Category),
		"severity": string(a.Severity),
		"time":     a.Time.UTC().Format(time.RFC3339),
	}
	switch a.Category {
	case alert.CategoryErrorRateHigh, alert.CategoryErrorRateRecovered:
		fields["ratio"] = a.Ratio
		fields["threshold"] = a.Threshold
		fields["errors"] = a.Errors
		fields["fill"] = a.Fill
		fields["window_size"] = a.WindowSize
	case alert.CategoryFailover, alert.CategoryRecovery:
		fields["from_pool"] = a.FromPool
		fields["to_pool"] = a.ToPool
	}
	if a.Pool != "" {
		fields["pool"] = a.Pool
	}
	if a.Release != "" {
		fields["release"] = a.Release
	}
	if a.PrevRelease != "" {
		fields["prev_release"] = a.PrevRelease
	}
	if a.Environment != "" {
		fields["environment"] = a.Environment
	}
	return fields
}
