package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pool-watch/internal/alert"
	"pool-watch/internal/logger"
	"pool-watch/internal/logsource"
	"pool-watch/internal/watch"
)

var (
	replayAll     bool
	replayJSON    bool
	replayVerbose bool
)

var replayCmd = &cobra.Command{
	Use:   "replay LOGFILE",
	Short: "回放已有访问日志 输出告警决策",
	Long: `从头读取一份已有的访问日志 按当前配置执行完整判定并输出决策。
冷却按日志时间计算 不会投递任何通知。

Examples:
  # 只看会触发的告警
  pool-watch replay /var/log/nginx/access.log

  # 包含被冷却抑制的决策 输出 JSON
  pool-watch replay --all --json access.log`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().BoolVar(&replayAll, "all", false, "同时输出被抑制的决策")
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "以 JSON 行输出")
	replayCmd.Flags().BoolVarP(&replayVerbose, "verbose", "v", false, "输出判定过程日志")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadAndValidateConfig(args[0])
	if err != nil {
		return err
	}
	logger.SetOutput(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})
	if replayVerbose {
		logger.SetLogLevel("debug")
	} else {
		logger.SetLogLevel("warn")
	}

	opts, err := watch.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	maintenance := cfg.MaintenanceMode
	opts.Maintenance = func() bool { return maintenance }
	opts.Submit = func(alert.Alert) bool { return true }
	opts.UseLogTime = true
	pipeline := watch.NewPipeline(opts)

	reader := logsource.NewReader(logsource.OSFileSystem{}, cfg.AccessLogPath, logsource.Options{StartFromEnd: false})
	defer reader.Close()

	out := cmd.OutOrStdout()
	emit := func(line string) error {
		for _, d := range pipeline.HandleLine(line, time.Now()) {
			if d.Status == alert.StatusSuppressed && !replayAll {
				continue
			}
			if err := printDecision(out, d); err != nil {
				return err
			}
		}
		return nil
	}
	for {
		line, ok := reader.NextLine()
		if !ok {
			break
		}
		if err := emit(line); err != nil {
			return err
		}
	}
	if err := reader.Err(); err != nil {
		return err
	}
	if line, ok := reader.Flush(); ok {
		if err := emit(line); err != nil {
			return err
		}
	}

	if !replayJSON {
		printSummary(out, pipeline.Status())
	}
	return nil
}

func printDecision(w io.Writer, d watch.Decision) error {
	if replayJSON {
		return json.NewEncoder(w).Encode(map[string]any{
			"status": d.Status,
			"reason": d.Reason,
			"alert":  d.Alert,
		})
	}
	_, err := fmt.Fprintf(w, "%s  %-11s %-20s %s\n",
		alert.FormatTime(d.Alert.Time), d.Status, d.Alert.Category, d.Alert.Message)
	return err
}

func printSummary(w io.Writer, st watch.Status) {
	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "行数: %d 解析: %d 失败: %d\n", st.Lines, st.Parsed, st.ParseFailures)
	fmt.Fprintf(w, "窗口错误率: %s (%d/%d) 当前池: %s 切换: %d 切回: %d\n",
		st.Window.RatioText, st.Window.Errors, st.Window.Fill, st.Pool.Label, st.Pool.Failovers, st.Pool.Recoveries)
	fmt.Fprintf(w, "决策: 发送 %d 抑制 %d 维护 %d\n", st.Stats.Sent, st.Stats.Suppressed, st.Stats.Maintenance)
}
