package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pool-watch/internal/api"
	"pool-watch/internal/config"
	"pool-watch/internal/logger"
	"pool-watch/internal/metrics"
	"pool-watch/internal/models"
	"pool-watch/internal/sysinfo"
	"pool-watch/internal/watch"
)

const apiShutdownTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "持续监控访问日志并发送告警",
	Long: `持续监控访问日志并发送告警。

SIGHUP 重新读取配置 仅维护模式即时生效 其余变更需要重启。
SIGINT/SIGTERM 停止监控并排空通知队列。`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadAndValidateConfig("")
	if err != nil {
		return err
	}
	if err := logger.InitLogger(cfg); err != nil {
		return err
	}
	defer logger.Close()
	logConfig(cfg)

	collector := metrics.Global()
	if err := collector.RegisterRuntime(); err != nil {
		logger.Warn("注册运行时指标失败: %v", err)
	}
	system, err := sysinfo.NewCollector(5 * time.Second)
	if err != nil {
		logger.Warn("进程信息采集不可用: %v", err)
	} else if err := system.Register(collector.Registry()); err != nil {
		logger.Warn("注册进程指标失败: %v", err)
	}

	store := config.NewStore(configPath, cfg)
	manager, err := watch.NewManager(store, collector)
	if err != nil {
		logger.Error("创建监控失败: %v", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go watchReload(ctx, store, collector)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return manager.Run(gctx)
	})
	if apiEnabled(cfg) {
		server := api.NewServer(cfg.APIBind, api.Deps{
			Status:      manager,
			Maintenance: store,
			System:      system,
			Metrics:     collector.Handler(),
		})
		g.Go(server.ListenAndServe)
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), apiShutdownTimeout)
			defer cancel()
			return server.Shutdown(sctx)
		})
	}

	err = g.Wait()
	logger.Info("程序已退出")
	return err
}

// watchReload 处理 SIGHUP 重新加载配置
func watchReload(ctx context.Context, store *config.Store, collector *metrics.Collector) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			prev, next, err := store.Reload()
			if err != nil {
				logger.Error("重新加载配置失败，继续使用当前配置: %v", err)
				continue
			}
			collector.SetMaintenance(next.MaintenanceMode)
			if prev.MaintenanceMode != next.MaintenanceMode {
				logger.Info("维护模式已切换为 %v", next.MaintenanceMode)
			}
			if config.RestartRequired(prev, next) {
				logger.Warn("配置存在维护模式以外的变更，需要重启后生效")
			}
		}
	}
}

func logConfig(cfg *models.Config) {
	logger.Info("配置加载成功")
	logger.Info("访问日志: %s", cfg.AccessLogPath)
	logger.Info("日志格式: %s 错误来源: %s", cfg.LogFormat, cfg.ErrorSource)
	logger.Info("主池: %s 备池: %s", cfg.PrimaryPool, cfg.BackupPool)
	if cfg.InitialPool != "" {
		logger.Info("初始服务池: %s", cfg.InitialPool)
	}
	logger.Info("错误率阈值: %.2f%% 窗口: %d 最小样本: %d", cfg.ErrorRateThreshold*100, cfg.WindowSize, cfg.MinWindowFill)
	logger.Info("告警冷却: %s", cfg.AlertCooldown)
	logger.Info("维护模式: %v", cfg.MaintenanceMode)
	if cfg.WebhookURL != "" {
		logger.Info("通知渠道: %s", cfg.WebhookKind)
	}
	logger.Info("通知并发: %d 队列: %d 超时: %s", cfg.NotifyWorkers, cfg.NotifyQueueSize, cfg.NotifyTimeout)
	if apiEnabled(cfg) {
		logger.Info("API 监听: %s", cfg.APIBind)
	}
	if cfg.LogFile != "" {
		logger.Info("日志文件: %s", cfg.LogFile)
	}
}

// apiEnabled api_bind 为 off 时不启动 HTTP 服务
func apiEnabled(cfg *models.Config) bool {
	return cfg.APIBind != "" && cfg.APIBind != "off"
}
