// 本文件用于串联解析 窗口 切换检测与告警判定
package watch

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"pool-watch/internal/accesslog"
	"pool-watch/internal/alert"
	"pool-watch/internal/config"
	"pool-watch/internal/logger"
	"pool-watch/internal/metrics"
	"pool-watch/internal/models"
	"pool-watch/internal/pooltrack"
	"pool-watch/internal/window"
)

// Options 管道参数
type Options struct {
	Parser       *accesslog.Parser
	WindowSize   int
	MinFill      int
	Threshold    float64
	InitialPool  accesslog.Pool
	Cooldowns    config.Cooldowns
	Environment  string
	SummaryEvery int

	// Maintenance 每次判定时读取 为 nil 视为关闭
	Maintenance func() bool
	// Submit 投递告警 返回 false 表示被丢弃 为 nil 时只记录日志
	Submit func(alert.Alert) bool
	// UseLogTime 为 true 时冷却按日志时间计算 回放历史日志时使用
	UseLogTime bool

	Metrics *metrics.Collector
	NewID   func() string
}

// Decision 单条日志产生的告警决策
type Decision struct {
	Alert  alert.Alert
	Status alert.DecisionStatus
	Reason string
}

// Pipeline 管道上下文 持有全部判定状态
// HandleLine 只能由单一消费者按到达顺序调用
type Pipeline struct {
	mu sync.Mutex

	parser    *accesslog.Parser
	pools     accesslog.PoolMapper
	window    *window.Window
	evaluator window.Evaluator
	tracker   *pooltrack.Tracker
	level     *alert.LevelMachine
	failover  *alert.EdgeMachine
	recovery  *alert.EdgeMachine
	history   *alert.History

	environment  string
	summaryEvery int
	maintenance  func() bool
	submit       func(alert.Alert) bool
	useLogTime   bool
	metrics      *metrics.Collector
	newID        func() string

	lines         uint64
	parsed        uint64
	parseFailures uint64
	lastLineAt    time.Time
	evalAt        time.Time
	lastRatio     float64
}

// NewPipeline 创建管道
func NewPipeline(opts Options) *Pipeline {
	if opts.Parser == nil {
		opts.Parser = accesslog.NewParser(accesslog.FormatAuto, accesslog.NewPoolMapper("blue", "green"), accesslog.ErrorFromUpstream)
	}
	if opts.WindowSize <= 0 {
		opts.WindowSize = 200
	}
	if opts.MinFill > opts.WindowSize {
		opts.MinFill = opts.WindowSize
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Maintenance == nil {
		opts.Maintenance = func() bool { return false }
	}
	return &Pipeline{
		parser:       opts.Parser,
		pools:        opts.Parser.Pools(),
		window:       window.New(opts.WindowSize),
		evaluator:    window.Evaluator{Threshold: opts.Threshold, MinFill: opts.MinFill},
		tracker:      pooltrack.New(opts.InitialPool),
		level:        alert.NewLevelMachine(opts.Cooldowns.ErrorRateHigh, opts.Cooldowns.ErrorRateRecovered),
		failover:     alert.NewEdgeMachine(alert.CategoryFailover, opts.Cooldowns.Failover),
		recovery:     alert.NewEdgeMachine(alert.CategoryRecovery, opts.Cooldowns.Recovery),
		history:      alert.NewHistory(),
		environment:  opts.Environment,
		summaryEvery: opts.SummaryEvery,
		maintenance:  opts.Maintenance,
		submit:       opts.Submit,
		useLogTime:   opts.UseLogTime,
		metrics:      opts.Metrics,
		newID:        opts.NewID,
	}
}

// OptionsFromConfig 根据配置生成管道参数 投递与维护模式由调用方补齐
func OptionsFromConfig(cfg *models.Config) (Options, error) {
	cooldowns, err := config.ResolveCooldowns(cfg)
	if err != nil {
		return Options{}, err
	}
	pools := accesslog.NewPoolMapper(cfg.PrimaryPool, cfg.BackupPool)
	initial := accesslog.PoolUnknown
	if cfg.InitialPool != "" {
		initial = pools.Map(cfg.InitialPool)
	}
	return Options{
		Parser:       accesslog.NewParser(accesslog.Format(cfg.LogFormat), pools, accesslog.ErrorSource(cfg.ErrorSource)),
		WindowSize:   cfg.WindowSize,
		MinFill:      cfg.MinWindowFill,
		Threshold:    cfg.ErrorRateThreshold,
		InitialPool:  initial,
		Cooldowns:    cooldowns,
		Environment:  cfg.Environment,
		SummaryEvery: cfg.SummaryEvery,
	}, nil
}

// HandleLine 处理一行日志 返回本行产生的告警决策
func (p *Pipeline) HandleLine(line string, now time.Time) []Decision {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lines++
	p.lastLineAt = now
	p.metrics.IncLine()

	rec, err := p.parser.Parse(line, now)
	if err != nil {
		p.parseFailures++
		p.metrics.IncParseFailure()
		if errors.Is(err, accesslog.ErrUnparseable) {
			logger.Debug("跳过无法解析的日志行: %v", err)
		} else {
			logger.Warn("解析日志行失败: %v", err)
		}
		return nil
	}
	p.parsed++
	if p.useLogTime {
		now = rec.Time
	}
	p.evalAt = now

	ratio, fill := p.window.Push(rec)
	p.lastRatio = ratio
	p.metrics.ObserveRecord(p.pools.Label(rec.Pool), rec.IsError)
	p.metrics.SetWindow(ratio, fill, p.window.Errors())

	var out []Decision

	tr := p.tracker.Observe(rec)
	if tr.ReleaseChanged {
		logger.Info("检测到版本变化: %s -> %s (池 %s)", tr.PrevRelease, tr.Release, p.pools.Label(rec.Pool))
	}
	switch tr.Kind {
	case pooltrack.Failover:
		p.metrics.IncTransition(string(tr.Kind))
		p.metrics.SetActivePool(p.pools.Label(tr.To), p.pools.Label(accesslog.PoolPrimary), p.pools.Label(accesslog.PoolBackup))
		out = append(out, p.decide(p.failover.Trigger(now), p.edgeAlert(tr, ratio, fill, now)))
	case pooltrack.Recovery:
		p.metrics.IncTransition(string(tr.Kind))
		p.metrics.SetActivePool(p.pools.Label(tr.To), p.pools.Label(accesslog.PoolPrimary), p.pools.Label(accesslog.PoolBackup))
		out = append(out, p.decide(p.recovery.Trigger(now), p.edgeAlert(tr, ratio, fill, now)))
	case pooltrack.UnknownTransition:
		p.metrics.IncTransition(string(tr.Kind))
	}

	if p.evaluator.Ready(fill) {
		for _, outcome := range p.level.Evaluate(p.evaluator.High(ratio, fill), now) {
			out = append(out, p.decide(outcome, p.rateAlert(outcome.Category, ratio, fill, now)))
		}
	}

	if p.summaryEvery > 0 && p.parsed%uint64(p.summaryEvery) == 0 {
		state := p.tracker.State()
		logger.Info("窗口统计: 错误率 %s (%d/%d) 当前池 %s 版本 %s",
			alert.FormatPercent(ratio), p.window.Errors(), fill, p.pools.Label(state.Pool), state.Release)
	}
	return out
}

func (p *Pipeline) edgeAlert(tr pooltrack.Transition, ratio float64, fill int, now time.Time) alert.Alert {
	category := alert.CategoryFailover
	if tr.Kind == pooltrack.Recovery {
		category = alert.CategoryRecovery
	}
	return alert.Alert{
		Category:    category,
		FromPool:    p.pools.Label(tr.From),
		ToPool:      p.pools.Label(tr.To),
		Pool:        p.pools.Label(tr.To),
		Release:     tr.Release,
		PrevRelease: tr.PrevRelease,
		Ratio:       ratio,
		Threshold:   p.evaluator.Threshold,
		Errors:      p.window.Errors(),
		Fill:        fill,
		WindowSize:  p.window.Cap(),
		Time:        now,
	}
}

func (p *Pipeline) rateAlert(category alert.Category, ratio float64, fill int, now time.Time) alert.Alert {
	state := p.tracker.State()
	return alert.Alert{
		Category:    category,
		Pool:        p.pools.Label(state.Pool),
		Release:     state.Release,
		PrevRelease: state.PrevRelease,
		Ratio:       ratio,
		Threshold:   p.evaluator.Threshold,
		Errors:      p.window.Errors(),
		Fill:        fill,
		WindowSize:  p.window.Cap(),
		Time:        now,
	}
}

// decide 把状态机结果落为决策 状态机此前已按触发推进
func (p *Pipeline) decide(outcome alert.Outcome, a alert.Alert) Decision {
	a.ID = p.newID()
	a.Severity = alert.SeverityOf(a.Category)
	a.Title = alert.Title(a)
	a.Message = alert.Headline(a)
	a.Environment = p.environment

	d := Decision{Alert: a, Reason: outcome.Reason}
	switch {
	case !outcome.Fire:
		d.Status = alert.StatusSuppressed
		logger.Debug("告警被抑制: %s, %s", a.Message, outcome.Reason)
	case p.maintenance():
		d.Status = alert.StatusMaintenance
		d.Reason = "维护模式"
		logger.Info("维护模式 不发送告警: %s", a.Message)
	case p.submit == nil:
		d.Status = alert.StatusLogged
		d.Reason = "未配置 webhook"
		logger.Warn("告警(仅记录): %s", a.Message)
	case p.submit(a):
		d.Status = alert.StatusSent
		logger.Info("告警已提交: %s", a.Message)
	default:
		d.Status = alert.StatusDropped
		d.Reason = "通知队列已满"
	}

	p.history.Record(a, d.Status, d.Reason)
	p.metrics.IncDecision(string(a.Category), string(d.Status))
	return d
}

// History 返回决策记录
func (p *Pipeline) History() *alert.History {
	return p.history
}
