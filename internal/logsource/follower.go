// 本文件用于驱动日志读取 事件唤醒加定时轮询
package logsource

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"pool-watch/internal/logger"
)

// Follower 持续消费 LineSource
// 先读尽已有行 再等待 fsnotify 事件或轮询定时器
type Follower struct {
	source   LineSource
	path     string
	interval time.Duration
	handler  func(line string)
	onIdle   func()
}

// NewFollower 创建跟随器 path 为空时只使用定时轮询
func NewFollower(source LineSource, path string, interval time.Duration, handler func(line string)) *Follower {
	if interval <= 0 {
		interval = time.Second
	}
	return &Follower{
		source:   source,
		path:     path,
		interval: interval,
		handler:  handler,
	}
}

// OnIdle 设置每轮读尽后的回调
func (f *Follower) OnIdle(fn func()) {
	f.onIdle = fn
}

// Run 阻塞直到 ctx 取消
func (f *Follower) Run(ctx context.Context) error {
	events, closeWatch := f.watch()
	defer closeWatch()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		f.drain(ctx)
		if f.onIdle != nil {
			f.onIdle()
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-events:
		}
	}
}

func (f *Follower) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		line, ok := f.source.NextLine()
		if !ok {
			return
		}
		f.handler(line)
	}
}

// watch 监听日志所在目录 轮转后新建的文件同样能收到事件
// 监听失败时退化为纯轮询
func (f *Follower) watch() (<-chan struct{}, func()) {
	noop := func() {}
	if f.path == "" {
		return nil, noop
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("创建文件监听失败 退化为轮询: %v", err)
		return nil, noop
	}
	dir := filepath.Dir(f.path)
	if err := watcher.Add(dir); err != nil {
		logger.Warn("监听目录失败 退化为轮询: %s, 错误: %v", dir, err)
		_ = watcher.Close()
		return nil, noop
	}
	logger.Debug("开始监听日志目录: %s", dir)

	target := filepath.Clean(f.path)
	wake := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				select {
				case wake <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("文件监听错误: %v", err)
			}
		}
	}()
	return wake, func() {
		close(done)
		_ = watcher.Close()
	}
}
