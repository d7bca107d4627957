package wechat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pool-watch/internal/logger"
)

const webhookURLFormat = "https://qyapi.weixin.qq.com/cgi-bin/webhook/send?key=%s"

// Robot 企业微信机器人
type Robot struct {
	webhook string
	client  *http.Client
}

type message struct {
	MsgType  string   `json:"msgtype"`
	Markdown markdown `json:"markdown"`
}

type markdown struct {
	Content string `json:"content"`
}

type response struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// NewRobot 创建新的企业微信机器人 传入完整地址或机器人 key
func NewRobot(webhookOrKey string) *Robot {
	return &Robot{
		webhook: buildWebhookURL(strings.TrimSpace(webhookOrKey)),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// SendMarkdown 发送 markdown 消息
func (r *Robot) SendMarkdown(ctx context.Context, title, content string) error {
	if r.webhook == "" {
		return fmt.Errorf("企业微信 webhook 为空")
	}

	jsonReq, err := json.Marshal(buildMarkdownMessage(title, content))
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	if err := r.sendRequest(ctx, jsonReq); err != nil {
		return err
	}

	logger.Debug("企业微信机器人消息发送成功: %s", title)
	return nil
}

func buildWebhookURL(webhookOrKey string) string {
	if webhookOrKey == "" || strings.Contains(webhookOrKey, "://") {
		return webhookOrKey
	}
	return fmt.Sprintf(webhookURLFormat, webhookOrKey)
}

func buildMarkdownMessage(title, content string) message {
	if title != "" {
		content = fmt.Sprintf("### <font color=\"warning\">%s</font>\n%s", title, content)
	}
	return message{
		Markdown: markdown{
			Content: content,
		},
		MsgType: "markdown",
	}
}

func (r *Robot) sendRequest(ctx context.Context, payload []byte) error {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.webhook, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("企业微信机器人消息发送失败，状态码: %d", resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("解析企业微信响应失败: %w", err)
	}
	if body.ErrCode != 0 {
		return fmt.Errorf("企业微信机器人返回错误: %d %s", body.ErrCode, body.ErrMsg)
	}
	return nil
}
