package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"pool-watch/internal/models"
)

const (
	defaultPollInterval    = "1s"
	defaultRetryMin        = "500ms"
	defaultRetryMax        = "10s"
	defaultAlertCooldown   = "300s"
	defaultNotifyTimeout   = "10s"
	defaultThreshold       = 0.02
	defaultWindowSize      = 200
	defaultMinWindowFill   = 50
	defaultNotifyWorkers   = 2
	defaultNotifyQueueSize = 64
	defaultSummaryEvery    = 50
	defaultPrimaryPool     = "blue"
	defaultBackupPool      = "green"
	defaultAPIBind         = ":9100"
)

// LoadConfig 加载配置文件 叠加环境变量与运行时配置后补齐默认值
// configFile 为空时仅使用环境变量
func LoadConfig(configFile string) (*models.Config, error) {
	var config models.Config
	if strings.TrimSpace(configFile) != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	if err := applyEnv(&config, os.LookupEnv); err != nil {
		return nil, err
	}

	runtime, err := loadRuntimeConfig(configFile)
	if err != nil {
		return nil, err
	}
	applyRuntimeConfig(&config, runtime)

	applyDefaults(&config)
	return &config, nil
}

// applyDefaults 设置默认值
func applyDefaults(config *models.Config) {
	if config.StartFromEnd == nil {
		config.StartFromEnd = boolPtr(true)
	}
	if strings.TrimSpace(config.PollInterval) == "" {
		config.PollInterval = defaultPollInterval
	}
	if strings.TrimSpace(config.RetryMin) == "" {
		config.RetryMin = defaultRetryMin
	}
	if strings.TrimSpace(config.RetryMax) == "" {
		config.RetryMax = defaultRetryMax
	}
	config.LogFormat = strings.ToLower(strings.TrimSpace(config.LogFormat))
	if config.LogFormat == "" {
		config.LogFormat = "auto"
	}
	if strings.TrimSpace(config.PrimaryPool) == "" {
		config.PrimaryPool = defaultPrimaryPool
	}
	if strings.TrimSpace(config.BackupPool) == "" {
		config.BackupPool = defaultBackupPool
	}
	config.ErrorSource = strings.ToLower(strings.TrimSpace(config.ErrorSource))
	if config.ErrorSource == "" {
		config.ErrorSource = "upstream"
	}
	if config.ErrorRateThreshold == 0 {
		config.ErrorRateThreshold = defaultThreshold
	}
	if config.WindowSize == 0 {
		config.WindowSize = defaultWindowSize
	}
	if config.MinWindowFill == 0 {
		config.MinWindowFill = defaultMinWindowFill
		if config.MinWindowFill > config.WindowSize && config.WindowSize > 0 {
			config.MinWindowFill = config.WindowSize
		}
	}
	if strings.TrimSpace(config.AlertCooldown) == "" {
		config.AlertCooldown = defaultAlertCooldown
	}
	if config.SummaryEvery == 0 {
		config.SummaryEvery = defaultSummaryEvery
	}
	config.WebhookKind = strings.ToLower(strings.TrimSpace(config.WebhookKind))
	if config.WebhookKind == "" {
		config.WebhookKind = "slack"
	}
	if config.NotifyWorkers <= 0 {
		config.NotifyWorkers = defaultNotifyWorkers
	}
	if config.NotifyQueueSize <= 0 {
		config.NotifyQueueSize = defaultNotifyQueueSize
	}
	if strings.TrimSpace(config.NotifyTimeout) == "" {
		config.NotifyTimeout = defaultNotifyTimeout
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogOutputFormat == "" {
		config.LogOutputFormat = "console"
	}
	if config.APIBind == "" {
		config.APIBind = defaultAPIBind
	}
}

// ValidateConfig 验证配置
func ValidateConfig(config *models.Config) error {
	if config == nil {
		return fmt.Errorf("配置为空")
	}
	if strings.TrimSpace(config.AccessLogPath) == "" {
		return fmt.Errorf("访问日志路径不能为空")
	}
	switch config.LogFormat {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("无效的日志格式: %s", config.LogFormat)
	}
	switch config.ErrorSource {
	case "upstream", "client":
	default:
		return fmt.Errorf("无效的错误来源: %s", config.ErrorSource)
	}
	if strings.EqualFold(strings.TrimSpace(config.PrimaryPool), strings.TrimSpace(config.BackupPool)) {
		return fmt.Errorf("主备池标识不能相同: %s", config.PrimaryPool)
	}
	if initial := strings.TrimSpace(config.InitialPool); initial != "" &&
		!strings.EqualFold(initial, config.PrimaryPool) && !strings.EqualFold(initial, config.BackupPool) {
		return fmt.Errorf("初始池必须是主池或备池: %s", config.InitialPool)
	}
	if config.ErrorRateThreshold <= 0 || config.ErrorRateThreshold > 1 {
		return fmt.Errorf("错误率阈值必须在 (0,1] 区间: %v", config.ErrorRateThreshold)
	}
	if config.WindowSize < 1 {
		return fmt.Errorf("窗口大小必须大于零: %d", config.WindowSize)
	}
	if config.MinWindowFill < 1 || config.MinWindowFill > config.WindowSize {
		return fmt.Errorf("最小窗口填充必须在 [1,%d] 区间: %d", config.WindowSize, config.MinWindowFill)
	}
	for name, raw := range map[string]string{
		"poll_interval":  config.PollInterval,
		"retry_min":      config.RetryMin,
		"retry_max":      config.RetryMax,
		"alert_cooldown": config.AlertCooldown,
		"notify_timeout": config.NotifyTimeout,
	} {
		if _, err := ParseDuration(raw, 0); err != nil {
			return fmt.Errorf("%s 无效: %w", name, err)
		}
	}
	if _, err := ResolveCooldowns(config); err != nil {
		return err
	}
	switch config.WebhookKind {
	case "slack", "dingtalk", "wechat", "generic":
	default:
		return fmt.Errorf("无效的 webhook 类型: %s", config.WebhookKind)
	}
	// 企业微信允许只填机器人 key
	if raw := strings.TrimSpace(config.WebhookURL); raw != "" && (config.WebhookKind != "wechat" || strings.Contains(raw, "://")) {
		parsed, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("webhook 地址无效: %w", err)
		}
		if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("webhook 地址无效: %s", raw)
		}
	}
	switch strings.ToLower(config.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("无效的日志级别: %s", config.LogLevel)
	}
	return nil
}

// Cooldowns 表示解析后的分类冷却时间
type Cooldowns struct {
	ErrorRateHigh      time.Duration
	ErrorRateRecovered time.Duration
	Failover           time.Duration
	Recovery           time.Duration
}

// ResolveCooldowns 解析分类冷却时间 未单独配置的分类使用 alert_cooldown
func ResolveCooldowns(config *models.Config) (Cooldowns, error) {
	base, err := ParseDuration(config.AlertCooldown, 0)
	if err != nil {
		return Cooldowns{}, fmt.Errorf("alert_cooldown 无效: %w", err)
	}
	var out Cooldowns
	for _, item := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"error_rate_high", config.Cooldowns.ErrorRateHigh, &out.ErrorRateHigh},
		{"error_rate_recovered", config.Cooldowns.ErrorRateRecovered, &out.ErrorRateRecovered},
		{"failover", config.Cooldowns.Failover, &out.Failover},
		{"recovery", config.Cooldowns.Recovery, &out.Recovery},
	} {
		val, err := ParseDuration(item.raw, base)
		if err != nil {
			return Cooldowns{}, fmt.Errorf("冷却时间 %s 无效: %w", item.name, err)
		}
		*item.dst = val
	}
	return out, nil
}

var numberOnly = regexp.MustCompile(`^\d+$`)

// ParseDuration 解析时长 支持 5m 这类写法与纯数字秒数 空值返回 fallback
func ParseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback, nil
	}
	clean := strings.ToLower(trimmed)
	clean = strings.ReplaceAll(clean, "秒钟", "秒")
	clean = strings.ReplaceAll(clean, "秒", "s")
	clean = strings.ReplaceAll(clean, "分钟", "m")
	clean = strings.ReplaceAll(clean, "分", "m")
	clean = strings.ReplaceAll(clean, "小时", "h")
	clean = strings.TrimSpace(clean)
	if numberOnly.MatchString(clean) {
		v, err := strconv.Atoi(clean)
		if err != nil {
			return 0, fmt.Errorf("无效时间: %s", raw)
		}
		return time.Duration(v) * time.Second, nil
	}
	d, err := time.ParseDuration(clean)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("无效时间: %s", raw)
	}
	return d, nil
}

// MustDuration 解析已校验过的时长 失败时返回 fallback
func MustDuration(raw string, fallback time.Duration) time.Duration {
	d, err := ParseDuration(raw, fallback)
	if err != nil {
		return fallback
	}
	return d
}

func boolPtr(value bool) *bool {
	return &value
}
