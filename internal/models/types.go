// 本文件用于定义配置结构
package models

// Config 配置结构体
// 启动时加载一次 之后只读 运行时变更通过整体替换快照完成
type Config struct {
	Environment string `yaml:"environment"`

	AccessLogPath string `yaml:"access_log_path"` // 反向代理访问日志
	StartFromEnd  *bool  `yaml:"start_from_end"`  // 默认 true 不回放历史
	PollInterval  string `yaml:"poll_interval"`
	RetryMin      string `yaml:"retry_min"`
	RetryMax      string `yaml:"retry_max"`
	LogFormat     string `yaml:"log_format"` // auto/text/json

	PrimaryPool string `yaml:"primary_pool"`
	BackupPool  string `yaml:"backup_pool"`
	InitialPool string `yaml:"initial_pool"`
	ErrorSource string `yaml:"error_source"` // upstream/client

	ErrorRateThreshold float64        `yaml:"error_rate_threshold"` // 比例 0.02 即 2%
	WindowSize         int            `yaml:"window_size"`
	MinWindowFill      int            `yaml:"min_window_fill"`
	AlertCooldown      string         `yaml:"alert_cooldown"`
	Cooldowns          CooldownConfig `yaml:"cooldowns"`
	MaintenanceMode    bool           `yaml:"maintenance_mode"`
	SummaryEvery       int            `yaml:"summary_every"`

	WebhookKind     string `yaml:"webhook_kind"` // slack/dingtalk/wechat/generic
	WebhookURL      string `yaml:"webhook_url"`
	WebhookSecret   string `yaml:"webhook_secret"`
	NotifyWorkers   int    `yaml:"notify_workers"`
	NotifyQueueSize int    `yaml:"notify_queue_size"`
	NotifyTimeout   string `yaml:"notify_timeout"`

	LogLevel        string `yaml:"log_level"`
	LogOutputFormat string `yaml:"log_output_format"` // console/json
	LogFile         string `yaml:"log_file"`

	APIBind string `yaml:"api_bind"`
}

// CooldownConfig 表示分类冷却时间 为空时回落到 alert_cooldown
type CooldownConfig struct {
	ErrorRateHigh      string `yaml:"error_rate_high"`
	ErrorRateRecovered string `yaml:"error_rate_recovered"`
	Failover           string `yaml:"failover"`
	Recovery           string `yaml:"recovery"`
}

// Clone 返回浅拷贝 用于生成新的配置快照
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	if c.StartFromEnd != nil {
		v := *c.StartFromEnd
		out.StartFromEnd = &v
	}
	return &out
}
