// 本文件用于环境变量覆盖 变量名沿用部署脚本中的约定
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"pool-watch/internal/models"
)

type lookupFunc func(key string) (string, bool)

// LoadEnvFiles 加载 .env 文件 已存在的环境变量不会被覆盖
func LoadEnvFiles(paths ...string) {
	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			continue
		}
		_ = godotenv.Load(path)
	}
	_ = godotenv.Load()
}

func applyEnv(cfg *models.Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("ACCESS_LOG_PATH", &cfg.AccessLogPath)
	str("PRIMARY_POOL", &cfg.PrimaryPool)
	str("BACKUP_POOL", &cfg.BackupPool)
	str("INITIAL_ACTIVE_POOL", &cfg.InitialPool)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("WEBHOOK_KIND", &cfg.WebhookKind)
	str("WEBHOOK_URL", &cfg.WebhookURL)
	str("WEBHOOK_SECRET", &cfg.WebhookSecret)
	if v, ok := lookup("SLACK_WEBHOOK_URL"); ok && strings.TrimSpace(v) != "" {
		cfg.WebhookURL = strings.TrimSpace(v)
		if cfg.WebhookKind == "" {
			cfg.WebhookKind = "slack"
		}
	}
	str("API_BIND", &cfg.APIBind)

	if v, ok := lookup("ERROR_RATE_THRESHOLD"); ok && strings.TrimSpace(v) != "" {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("ERROR_RATE_THRESHOLD 无效: %w", err)
		}
		// 环境变量沿用百分比写法 2 表示 2%
		cfg.ErrorRateThreshold = parsed / 100
	}
	for _, item := range []struct {
		key string
		dst *int
	}{
		{"WINDOW_SIZE", &cfg.WindowSize},
		{"MIN_WINDOW_FILL", &cfg.MinWindowFill},
	} {
		v, ok := lookup(item.key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s 无效: %w", item.key, err)
		}
		*item.dst = parsed
	}
	if v, ok := lookup("ALERT_COOLDOWN_SEC"); ok && strings.TrimSpace(v) != "" {
		cfg.AlertCooldown = strings.TrimSpace(v)
	}
	if v, ok := lookup("MAINTENANCE_MODE"); ok && strings.TrimSpace(v) != "" {
		parsed, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("MAINTENANCE_MODE 无效: %w", err)
		}
		cfg.MaintenanceMode = parsed
	}
	return nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("无法识别的布尔值: %s", raw)
	}
}
