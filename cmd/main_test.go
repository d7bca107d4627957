package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pool-watch/internal/models"
)

func TestRedact(t *testing.T) {
	cfg := &models.Config{
		WebhookURL:    "https://hooks.slack.com/services/T000/B000/XXXX",
		WebhookSecret: "SEC123",
	}
	out := redact(cfg)
	assert.Equal(t, "https://hooks.slack.com/***", out.WebhookURL)
	assert.Equal(t, "***", out.WebhookSecret)
	assert.Equal(t, "SEC123", cfg.WebhookSecret)

	assert.Equal(t, "", maskURL(""))
	assert.Equal(t, "***", maskURL("abc-key"))
}

func TestReplayCommand(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	var lines []string
	for i, pool := range []string{"blue", "blue", "green", "green"} {
		ts := base.Add(time.Duration(i) * time.Second).Format("02/Jan/2006:15:04:05 -0700")
		lines = append(lines, fmt.Sprintf(`[%s] 172.18.0.1 "GET /version HTTP/1.1" 200 pool="%s" release="%s-v1" upstream_status=200 upstream_addr=172.18.0.2:3000 request_time=0.004 upstream_response_time=0.003`, ts, pool, pool))
	}
	logPath := filepath.Join(dir, "access.log")
	require.NoError(t, os.WriteFile(logPath, []byte(strings.Join(lines, "\n")), 0o644))
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("access_log_path: /nonexistent.log\n"), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"replay", "--config", cfgPath, logPath})
	require.NoError(t, rootCmd.Execute())

	text := out.String()
	assert.Equal(t, 1, strings.Count(text, "failover detected"), text)
	assert.Contains(t, text, "行数: 4 解析: 4 失败: 0")
	assert.Contains(t, text, "切换: 1")
}
