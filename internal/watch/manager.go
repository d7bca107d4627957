// 本文件用于组装读取器 管道与投递器并管理其生命周期
package watch

import (
	"context"
	"fmt"
	"time"

	"pool-watch/internal/alert"
	"pool-watch/internal/config"
	"pool-watch/internal/logger"
	"pool-watch/internal/logsource"
	"pool-watch/internal/metrics"
	"pool-watch/internal/notify"
)

const shutdownTimeout = 5 * time.Second

// Manager 持有一次运行所需的全部组件
type Manager struct {
	store      *config.Store
	pipeline   *Pipeline
	reader     *logsource.Reader
	follower   *logsource.Follower
	dispatcher *notify.Dispatcher
	metrics    *metrics.Collector

	lastReadErr string
}

// ManagerStatus 对外展示的运行状态
type ManagerStatus struct {
	Pipeline  Status             `json:"pipeline"`
	Reader    logsource.Position `json:"reader"`
	Notify    *notify.Stats      `json:"notify,omitempty"`
	Decisions []alert.Decision   `json:"decisions"`
}

// NewManager 根据当前配置快照创建管理器
func NewManager(store *config.Store, collector *metrics.Collector) (*Manager, error) {
	cfg := store.Load()
	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	opts.Maintenance = store.Maintenance
	opts.Metrics = collector

	sink, err := notify.NewSink(cfg)
	if err != nil {
		return nil, fmt.Errorf("创建通知渠道失败: %w", err)
	}
	m := &Manager{store: store, metrics: collector}
	if sink == nil {
		logger.Warn("未配置 webhook 地址，告警只记录日志")
	} else {
		m.dispatcher = notify.NewDispatcher(sink, notify.Options{
			Workers:   cfg.NotifyWorkers,
			QueueSize: cfg.NotifyQueueSize,
			Timeout:   config.MustDuration(cfg.NotifyTimeout, 10*time.Second),
			Metrics:   collector,
		})
		opts.Submit = m.dispatcher.Submit
	}
	m.pipeline = NewPipeline(opts)

	startFromEnd := cfg.StartFromEnd == nil || *cfg.StartFromEnd
	m.reader = logsource.NewReader(logsource.OSFileSystem{}, cfg.AccessLogPath, logsource.Options{
		StartFromEnd: startFromEnd,
		RetryMin:     config.MustDuration(cfg.RetryMin, 500*time.Millisecond),
		RetryMax:     config.MustDuration(cfg.RetryMax, 10*time.Second),
	})
	m.follower = logsource.NewFollower(m.reader, cfg.AccessLogPath, config.MustDuration(cfg.PollInterval, time.Second), func(line string) {
		m.pipeline.HandleLine(line, time.Now())
	})
	m.follower.OnIdle(m.checkReader)
	collector.SetMaintenance(store.Maintenance())
	return m, nil
}

// Run 阻塞直到 ctx 取消 退出前关闭文件并排空通知队列
func (m *Manager) Run(ctx context.Context) error {
	logger.Info("开始监控访问日志: %s", m.reader.Path())
	err := m.follower.Run(ctx)

	if cerr := m.reader.Close(); cerr != nil {
		logger.Warn("关闭访问日志失败: %v", cerr)
	}
	if m.dispatcher != nil {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if serr := m.dispatcher.Shutdown(sctx); serr != nil {
			logger.Warn("关闭通知投递器: %v", serr)
		}
	}
	logger.Info("访问日志监控已停止")
	return err
}

// checkReader 每轮读尽后检查读取错误 同一错误只记录一次
func (m *Manager) checkReader() {
	m.metrics.SetMaintenance(m.store.Maintenance())
	err := m.reader.Err()
	if err == nil {
		if m.lastReadErr != "" {
			logger.Info("访问日志恢复读取: %s", m.reader.Path())
			m.lastReadErr = ""
		}
		return
	}
	if msg := err.Error(); msg != m.lastReadErr {
		m.lastReadErr = msg
		m.metrics.IncReadError()
		logger.Warn("读取访问日志失败，将在 %s 后重试: %v", alert.FormatTime(m.reader.RetryAt()), err)
	}
}

// Pipeline 返回管道
func (m *Manager) Pipeline() *Pipeline {
	return m.pipeline
}

// Status 返回运行状态
func (m *Manager) Status() ManagerStatus {
	st := ManagerStatus{
		Pipeline:  m.pipeline.Status(),
		Decisions: m.pipeline.History().Decisions(),
	}
	st.Reader, _ = m.reader.Position()
	if m.dispatcher != nil {
		stats := m.dispatcher.Stats()
		st.Notify = &stats
	}
	return st
}
