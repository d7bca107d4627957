// Package window 维护最近 N 条请求的滚动错误率
package window

import (
	"fmt"

	"pool-watch/internal/accesslog"
)

// Window 固定容量的环形窗口 满了之后淘汰最旧记录
// 错误数随 Push 增量维护 不重新扫描
type Window struct {
	records []accesslog.Record
	head    int // 最旧记录下标
	size    int
	errors  int
}

// New 创建窗口 capacity 必须大于零
func New(capacity int) *Window {
	if capacity <= 0 {
		panic(fmt.Sprintf("window: 非法容量 %d", capacity))
	}
	return &Window{records: make([]accesslog.Record, capacity)}
}

// Push 追加记录 返回当前错误率与填充数
func (w *Window) Push(rec accesslog.Record) (ratio float64, fill int) {
	capacity := len(w.records)
	if w.size == capacity {
		if w.records[w.head].IsError {
			w.errors--
		}
		w.records[w.head] = rec
		w.head = (w.head + 1) % capacity
	} else {
		w.records[(w.head+w.size)%capacity] = rec
		w.size++
	}
	if rec.IsError {
		w.errors++
	}
	if w.size > capacity || w.errors < 0 || w.errors > w.size {
		panic(fmt.Sprintf("window: 计数失衡 size=%d errors=%d cap=%d", w.size, w.errors, capacity))
	}
	return w.Ratio(), w.size
}

// Ratio 返回错误率 空窗口视为 0
func (w *Window) Ratio() float64 {
	if w.size == 0 {
		return 0
	}
	return float64(w.errors) / float64(w.size)
}

// Len 返回当前记录数
func (w *Window) Len() int { return w.size }

// Cap 返回容量
func (w *Window) Cap() int { return len(w.records) }

// Errors 返回窗口内错误数
func (w *Window) Errors() int { return w.errors }

// Exceeds 判断错误率是否严格大于阈值 等于阈值不算超出 避免在边界来回抖动
func Exceeds(ratio, threshold float64) bool {
	return ratio > threshold
}

// Evaluator 在窗口填充达到最小值前不做判定
type Evaluator struct {
	Threshold float64
	MinFill   int
}

// Ready 返回当前填充是否足够判定
func (e Evaluator) Ready(fill int) bool {
	return fill >= e.MinFill
}

// High 返回填充足够且错误率超出阈值
func (e Evaluator) High(ratio float64, fill int) bool {
	return e.Ready(fill) && Exceeds(ratio, e.Threshold)
}
