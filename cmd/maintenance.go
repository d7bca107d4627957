package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pool-watch/internal/config"
)

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance on|off",
	Short: "写入维护模式开关",
	Long: `把维护模式写入运行时配置文件 <config>.runtime.yaml。
运行中的进程收到 SIGHUP 后生效 也可以调用 POST /api/maintenance 直接切换。`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE:      runMaintenance,
}

func init() {
	rootCmd.AddCommand(maintenanceCmd)
}

func runMaintenance(cmd *cobra.Command, args []string) error {
	var enabled bool
	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "on", "true", "1":
		enabled = true
	case "off", "false", "0":
	default:
		return fmt.Errorf("无效的参数: %s 只支持 on 或 off", args[0])
	}
	path, err := config.SaveMaintenanceMode(configPath, enabled)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "维护模式已写入 %s: %v\n向进程发送 SIGHUP 后生效\n", path, enabled)
	return nil
}
