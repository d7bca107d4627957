// 本文件用于 Prometheus 指标聚合与导出 将运行时指标统一收口便于监控接入

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "pool_watch_"

const (
	// ResultSuccess 表示投递成功
	ResultSuccess = "success"
	// ResultError 表示投递失败
	ResultError = "error"
	// ResultDropped 表示队列已满丢弃
	ResultDropped = "dropped"
)

// Collector 聚合运行期指标 每个实例持有独立注册表
// 方法对 nil 接收者安全 未启用指标时可直接传 nil
type Collector struct {
	registry *prometheus.Registry

	linesRead     prometheus.Counter
	parseFailures prometheus.Counter
	recordsByPool *prometheus.CounterVec

	windowRatio  prometheus.Gauge
	windowFill   prometheus.Gauge
	windowErrors prometheus.Gauge
	activePool   *prometheus.GaugeVec

	transitions *prometheus.CounterVec
	decisions   *prometheus.CounterVec
	maintenance prometheus.Gauge

	deliveries      *prometheus.CounterVec
	deliveryLatency *prometheus.HistogramVec
	queueLength     prometheus.Gauge

	readErrors prometheus.Counter
}

var globalCollector = NewCollector()

// Global 返回进程级全局指标收集器。
func Global() *Collector {
	return globalCollector
}

// NewCollector 创建指标收集器。
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		linesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "lines_read_total",
			Help: "Total access log lines read",
		}),
		parseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "parse_failures_total",
			Help: "Total access log lines that could not be parsed",
		}),
		recordsByPool: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "records_total",
			Help: "Total parsed records by pool and error flag",
		}, []string{"pool", "error"}),
		windowRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "window_error_ratio",
			Help: "Error ratio over the rolling window",
		}),
		windowFill: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "window_fill",
			Help: "Records currently held by the rolling window",
		}),
		windowErrors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "window_errors",
			Help: "Error records currently held by the rolling window",
		}),
		activePool: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metricPrefix + "active_pool",
			Help: "1 for the pool currently serving traffic",
		}, []string{"pool"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "transitions_total",
			Help: "Pool transitions by kind",
		}, []string{"kind"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "alert_decisions_total",
			Help: "Alert decisions by category and status",
		}, []string{"category", "status"}),
		maintenance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "maintenance_mode",
			Help: "1 when maintenance mode is enabled",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "deliveries_total",
			Help: "Notification deliveries by sink and result",
		}, []string{"sink", "result"}),
		deliveryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricPrefix + "delivery_latency_seconds",
			Help:    "Notification delivery latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"sink"}),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "notify_queue_length",
			Help: "Alerts waiting in the notify queue",
		}),
		readErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "read_errors_total",
			Help: "Access log read failures",
		}),
	}
	c.registry.MustRegister(
		c.linesRead, c.parseFailures, c.recordsByPool,
		c.windowRatio, c.windowFill, c.windowErrors, c.activePool,
		c.transitions, c.decisions, c.maintenance,
		c.deliveries, c.deliveryLatency, c.queueLength,
		c.readErrors,
	)
	return c
}

// Registry 返回注册表 供进程指标等追加注册
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RegisterRuntime 注册 Go 运行时指标
func (c *Collector) RegisterRuntime() error {
	if c == nil {
		return nil
	}
	return c.registry.Register(collectors.NewGoCollector())
}

// Handler 返回 /metrics 处理器
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// IncLine 记录读取到一行
func (c *Collector) IncLine() {
	if c == nil {
		return
	}
	c.linesRead.Inc()
}

// IncParseFailure 记录解析失败
func (c *Collector) IncParseFailure() {
	if c == nil {
		return
	}
	c.parseFailures.Inc()
}

// IncReadError 记录读取失败
func (c *Collector) IncReadError() {
	if c == nil {
		return
	}
	c.readErrors.Inc()
}

// ObserveRecord 记录一条解析成功的记录
func (c *Collector) ObserveRecord(pool string, isError bool) {
	if c == nil {
		return
	}
	flag := "false"
	if isError {
		flag = "true"
	}
	c.recordsByPool.WithLabelValues(pool, flag).Inc()
}

// SetWindow 更新窗口指标
func (c *Collector) SetWindow(ratio float64, fill, errors int) {
	if c == nil {
		return
	}
	c.windowRatio.Set(ratio)
	c.windowFill.Set(float64(fill))
	c.windowErrors.Set(float64(errors))
}

// SetActivePool 更新当前服务池 其余池置 0
func (c *Collector) SetActivePool(active string, pools ...string) {
	if c == nil {
		return
	}
	for _, p := range pools {
		v := 0.0
		if p == active {
			v = 1
		}
		c.activePool.WithLabelValues(p).Set(v)
	}
}

// IncTransition 记录池切换
func (c *Collector) IncTransition(kind string) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(kind).Inc()
}

// IncDecision 记录告警决策
func (c *Collector) IncDecision(category, status string) {
	if c == nil {
		return
	}
	c.decisions.WithLabelValues(category, status).Inc()
}

// SetMaintenance 更新维护模式
func (c *Collector) SetMaintenance(enabled bool) {
	if c == nil {
		return
	}
	if enabled {
		c.maintenance.Set(1)
		return
	}
	c.maintenance.Set(0)
}

// ObserveDelivery 记录一次投递结果
func (c *Collector) ObserveDelivery(sink, result string, d time.Duration) {
	if c == nil {
		return
	}
	c.deliveries.WithLabelValues(sink, result).Inc()
	if result != ResultDropped {
		c.deliveryLatency.WithLabelValues(sink).Observe(d.Seconds())
	}
}

// SetQueueLength 更新通知队列长度
func (c *Collector) SetQueueLength(n int) {
	if c == nil {
		return
	}
	c.queueLength.Set(float64(n))
}
