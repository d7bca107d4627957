package dingtalk

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pool-watch/internal/logger"
)

// Robot 钉钉机器人。
type Robot struct {
	webhook string
	secret  string
	client  *http.Client
	now     func() time.Time
}

type message struct {
	MsgType  string   `json:"msgtype"`
	Markdown markdown `json:"markdown"`
}

type markdown struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type response struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// NewRobot 创建钉钉机器人实例。
func NewRobot(webhook, secret string) *Robot {
	return &Robot{
		webhook: strings.TrimSpace(webhook),
		secret:  strings.TrimSpace(secret),
		client:  &http.Client{Timeout: 10 * time.Second},
		now:     time.Now,
	}
}

// SendMarkdown 发送 markdown 消息。
func (r *Robot) SendMarkdown(ctx context.Context, title, text string) error {
	if r.webhook == "" {
		return fmt.Errorf("钉钉 webhook 为空")
	}

	jsonReq, err := json.Marshal(buildMarkdownMessage(title, text))
	if err != nil {
		return fmt.Errorf("序列化钉钉消息失败: %w", err)
	}

	webhookURL, err := r.buildWebhookURL()
	if err != nil {
		return fmt.Errorf("构建钉钉 webhook URL 失败: %w", err)
	}

	if err := r.postMessage(ctx, webhookURL, jsonReq); err != nil {
		return err
	}

	logger.Debug("钉钉机器人消息发送成功: %s", title)
	return nil
}

// buildMarkdownMessage 钉钉 markdown 换行需要两个换行符
func buildMarkdownMessage(title, text string) message {
	title = defaultValue(strings.TrimSpace(title), "pool-watch")
	body := strings.ReplaceAll(text, "\n", "\n\n")
	return message{
		MsgType: "markdown",
		Markdown: markdown{
			Title: title,
			Text:  fmt.Sprintf("### %s\n\n%s", title, body),
		},
	}
}

func (r *Robot) postMessage(ctx context.Context, webhookURL string, payload []byte) error {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("钉钉机器人 HTTP 状态码异常: %d", resp.StatusCode)
	}

	var responseBody response
	if err := json.NewDecoder(resp.Body).Decode(&responseBody); err != nil {
		return fmt.Errorf("解析钉钉响应失败: %w", err)
	}
	if responseBody.ErrCode != 0 {
		return fmt.Errorf("钉钉机器人返回错误: %d %s", responseBody.ErrCode, responseBody.ErrMsg)
	}
	return nil
}

// 配置了 secret 时 钉钉要求把 timestamp 和 sign 作为 query 参数拼上去
func (r *Robot) buildWebhookURL() (string, error) {
	if r.secret == "" {
		return r.webhook, nil
	}

	timestamp := r.now().UnixMilli()
	sign := signature(timestamp, r.secret)

	parsedURL, err := url.Parse(r.webhook)
	if err != nil {
		return "", err
	}

	query := parsedURL.Query()
	query.Set("timestamp", fmt.Sprintf("%d", timestamp))
	query.Set("sign", sign)
	parsedURL.RawQuery = query.Encode()
	return parsedURL.String(), nil
}

func signature(timestamp int64, secret string) string {
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, secret)
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func defaultValue(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
