// 本文件用于发送 Slack incoming webhook 消息
package slack

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/sjson"

	"pool-watch/internal/logger"
)

const eventType = "pool_watch_alert"

// Webhook Slack incoming webhook
type Webhook struct {
	url    string
	client *http.Client
}

// Message 表示一条 Slack 消息
// Text 为通知预览 Markdown 放入 mrkdwn section Fields 写入 metadata
type Message struct {
	Text     string
	Markdown string
	Fields   map[string]any
}

// NewWebhook 创建 webhook 发送器
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:    strings.TrimSpace(url),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send 发送消息 Slack 成功时返回 200 与 ok
func (w *Webhook) Send(ctx context.Context, msg Message) error {
	if w.url == "" {
		return fmt.Errorf("slack webhook 为空")
	}
	payload, err := BuildPayload(msg)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook 状态码异常: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	logger.Debug("slack 消息发送成功")
	return nil
}

// BuildPayload 组装 webhook JSON
func BuildPayload(msg Message) ([]byte, error) {
	payload := []byte(`{}`)
	steps := []struct {
		path  string
		value any
	}{
		{"text", msg.Text},
		{"blocks.0.type", "section"},
		{"blocks.0.text.type", "mrkdwn"},
		{"blocks.0.text.text", defaultValue(msg.Markdown, msg.Text)},
		{"metadata.event_type", eventType},
	}
	var err error
	for _, step := range steps {
		if payload, err = sjson.SetBytes(payload, step.path, step.value); err != nil {
			return nil, fmt.Errorf("组装 slack 消息失败: %w", err)
		}
	}

	keys := make([]string, 0, len(msg.Fields))
	for k := range msg.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		payload, err = sjson.SetRawBytes(payload, "metadata.event_payload", []byte(`{}`))
		if err != nil {
			return nil, fmt.Errorf("组装 slack 消息失败: %w", err)
		}
	}
	for _, k := range keys {
		// 字段名可能带点号 需转义
		path := "metadata.event_payload." + strings.ReplaceAll(k, ".", `\.`)
		if payload, err = sjson.SetBytes(payload, path, msg.Fields[k]); err != nil {
			return nil, fmt.Errorf("组装 slack 消息字段 %s 失败: %w", k, err)
		}
	}
	return payload, nil
}

func defaultValue(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
