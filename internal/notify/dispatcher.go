// 本文件用于异步投递告警 有界队列加固定数量工作协程
package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"pool-watch/internal/alert"
	"pool-watch/internal/logger"
	"pool-watch/internal/metrics"
)

// ErrClosed 表示投递器已关闭
var ErrClosed = errors.New("通知投递器已关闭")

// Sink 带名称的通知发送器
type Sink interface {
	alert.Notifier
	Name() string
}

// Options 投递器参数
type Options struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
	Metrics   *metrics.Collector
}

// Stats 投递统计
type Stats struct {
	QueueLength int    `json:"queueLength"`
	Workers     int    `json:"workers"`
	Sink        string `json:"sink"`
	Delivered   uint64 `json:"delivered"`
	Failed      uint64 `json:"failed"`
	Dropped     uint64 `json:"dropped"`
}

// Dispatcher 告警投递器
// Submit 从不阻塞 队列满时直接丢弃 投递失败不重试
type Dispatcher struct {
	sink    Sink
	queue   chan alert.Alert
	workers int
	timeout time.Duration
	metrics *metrics.Collector

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	delivered atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// NewDispatcher 创建投递器并启动工作协程
func NewDispatcher(sink Sink, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		sink:    sink,
		queue:   make(chan alert.Alert, opts.QueueSize),
		workers: opts.Workers,
		timeout: opts.Timeout,
		metrics: opts.Metrics,
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	logger.Info("通知投递器已启动，渠道: %s, 工作协程数: %d, 队列大小: %d", sink.Name(), opts.Workers, opts.QueueSize)
	return d
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for a := range d.queue {
		d.metrics.SetQueueLength(len(d.queue))
		d.deliver(id, a)
	}
}

func (d *Dispatcher) deliver(id int, a alert.Alert) {
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()

	start := time.Now()
	err := d.sink.Notify(ctx, a)
	elapsed := time.Since(start)
	if err != nil {
		d.failed.Add(1)
		d.metrics.ObserveDelivery(d.sink.Name(), metrics.ResultError, elapsed)
		logger.Error("工作协程 %d 发送告警失败: %s [%s], 错误: %v", id, a.Category, a.ID, err)
		return
	}
	d.delivered.Add(1)
	d.metrics.ObserveDelivery(d.sink.Name(), metrics.ResultSuccess, elapsed)
	logger.Info("工作协程 %d 发送告警完成: %s [%s], 耗时: %v", id, a.Category, a.ID, elapsed)
}

// Submit 提交告警 返回 false 表示已丢弃
func (d *Dispatcher) Submit(a alert.Alert) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		logger.Warn("通知投递器已关闭，丢弃告警: %s [%s]", a.Category, a.ID)
		return false
	}
	select {
	case d.queue <- a:
		d.metrics.SetQueueLength(len(d.queue))
		return true
	default:
		d.dropped.Add(1)
		d.metrics.ObserveDelivery(d.sink.Name(), metrics.ResultDropped, 0)
		logger.Warn("通知队列已满，丢弃告警: %s [%s]", a.Category, a.ID)
		return false
	}
}

// Shutdown 停止接收并等待队列排空 超过 ctx 期限时中断在途投递
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	logger.Info("正在关闭通知投递器，待发送: %d", len(d.queue))
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		logger.Info("通知投递器已关闭")
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		logger.Warn("通知投递器关闭超时，剩余告警已放弃")
		return ctx.Err()
	}
}

// Stats 返回投递统计
func (d *Dispatcher) Stats() Stats {
	return Stats{
		QueueLength: len(d.queue),
		Workers:     d.workers,
		Sink:        d.sink.Name(),
		Delivered:   d.delivered.Load(),
		Failed:      d.failed.Load(),
		Dropped:     d.dropped.Load(),
	}
}
