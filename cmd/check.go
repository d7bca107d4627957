package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"pool-watch/internal/config"
	"pool-watch/internal/models"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "校验配置并输出生效值",
	Long: `加载配置文件 .env 与环境变量 校验后以 YAML 输出生效配置。
webhook 地址与签名密钥会被脱敏。`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadAndValidateConfig("")
	if err != nil {
		return fmt.Errorf("配置无效: %w", err)
	}
	cooldowns, err := config.ResolveCooldowns(cfg)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(redact(cfg))
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}
	out := cmd.OutOrStdout()
	if configPath == "" {
		fmt.Fprintln(out, "# 未使用配置文件 仅环境变量")
	} else {
		fmt.Fprintf(out, "# 配置文件: %s\n", configPath)
	}
	fmt.Fprintf(out, "# 冷却: error_rate_high=%s error_rate_recovered=%s failover=%s recovery=%s\n",
		cooldowns.ErrorRateHigh, cooldowns.ErrorRateRecovered, cooldowns.Failover, cooldowns.Recovery)
	_, err = out.Write(data)
	return err
}

// redact 返回脱敏后的配置副本
func redact(cfg *models.Config) *models.Config {
	out := cfg.Clone()
	out.WebhookURL = maskURL(out.WebhookURL)
	if out.WebhookSecret != "" {
		out.WebhookSecret = "***"
	}
	return out
}

// maskURL 只保留协议与主机 路径和参数中通常带有令牌
func maskURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "***"
	}
	return parsed.Scheme + "://" + parsed.Host + "/***"
}
