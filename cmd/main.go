// 本文件用于程序启动入口
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pool-watch/internal/config"
	"pool-watch/internal/models"
)

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "pool-watch",
	Short: "蓝绿发布访问日志告警",
	Long: `pool-watch 持续读取反向代理访问日志 统计滚动窗口错误率
识别主备池切换与恢复 并按冷却与维护模式发送 webhook 告警。

不带子命令时等同于 pool-watch run。`,
	SilenceUsage: true,
}

func init() {
	rootCmd.RunE = runWatch
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "配置文件路径")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "额外加载的 .env 文件")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadAndValidateConfig 加载 .env 与配置文件 logPath 非空时覆盖访问日志路径
func loadAndValidateConfig(logPath string) (*models.Config, error) {
	config.LoadEnvFiles(envFile)
	resolveConfigPath()
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if logPath != "" {
		cfg.AccessLogPath = logPath
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveConfigPath 未显式指定且默认文件不存在时只使用环境变量
func resolveConfigPath() {
	if rootCmd.PersistentFlags().Changed("config") {
		return
	}
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		configPath = ""
	}
}
