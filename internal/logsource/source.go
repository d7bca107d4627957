// 本文件用于增量读取访问日志 支持截断与轮转
package logsource

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ErrNotStarted 表示读取器尚未成功定位到文件
var ErrNotStarted = errors.New("日志读取器尚未就绪")

const (
	// maxLineBytes 单行上限 超出的行整行丢弃
	maxLineBytes = 1 << 20
	// maxPendingLines 单次读取最多缓存的行数 其余留在文件中下次再读
	maxPendingLines = 1024
)

// LineSource 表示逐行日志来源
// NextLine 返回 false 表示当前没有新行 不代表结束
type LineSource interface {
	NextLine() (string, bool)
}

// FileState 文件状态 Inode 用于识别轮转
type FileState struct {
	Size  int64
	Inode uint64
}

// File 表示打开的日志文件
type File interface {
	io.ReadSeekCloser
}

// FileSystem 抽象文件系统 便于测试截断与轮转
type FileSystem interface {
	Stat(path string) (FileState, error)
	Open(path string) (File, error)
}

// Options 读取器参数
type Options struct {
	StartFromEnd bool
	RetryMin     time.Duration
	RetryMax     time.Duration
	Clock        func() time.Time
}

// Position 读取进度 对外展示用
type Position struct {
	Path      string `json:"path"`
	Offset    int64  `json:"offset"`
	Inode     uint64 `json:"inode"`
	Reopens   int    `json:"reopens"`
	Oversized int    `json:"oversized"`
	LastError string `json:"lastError,omitempty"`
}

// Reader 基于 FileSystem 的增量读取器
type Reader struct {
	fs   FileSystem
	path string
	opts Options

	mu        sync.Mutex
	file      File
	inode     uint64
	offset    int64
	remainder string
	pending   []string
	started   bool
	attempted bool
	reopens   int
	oversized int
	// discarding 为 true 时丢弃直到下一个换行 属于超长行的剩余部分
	discarding bool

	lastErr   error
	failures  int
	nextRetry time.Time

	buf []byte
}

// NewReader 创建读取器
func NewReader(fs FileSystem, path string, opts Options) *Reader {
	if opts.RetryMin <= 0 {
		opts.RetryMin = 500 * time.Millisecond
	}
	if opts.RetryMax < opts.RetryMin {
		opts.RetryMax = 10 * time.Second
		if opts.RetryMax < opts.RetryMin {
			opts.RetryMax = opts.RetryMin
		}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Reader{
		fs:   fs,
		path: path,
		opts: opts,
		buf:  make([]byte, 32*1024),
	}
}

// NextLine 返回下一条完整日志行
func (r *Reader) NextLine() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.pending) == 0 {
		r.fill()
	}
	if len(r.pending) == 0 {
		return "", false
	}
	line := r.pending[0]
	r.pending[0] = ""
	r.pending = r.pending[1:]
	return line, true
}

// Flush 取出末尾没有换行的残留内容 回放到文件结尾时使用
func (r *Reader) Flush() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	line := strings.TrimRight(r.remainder, "\r")
	r.remainder = ""
	if strings.TrimSpace(line) == "" {
		return "", false
	}
	return line, true
}

// fill 读取新增内容并切分行 出错时记录并按退避重试
func (r *Reader) fill() {
	now := r.opts.Clock()
	if r.failures > 0 && now.Before(r.nextRetry) {
		return
	}
	if err := r.poll(); err != nil {
		r.fail(now, err)
		return
	}
	r.failures = 0
	r.lastErr = nil
}

func (r *Reader) poll() error {
	// 只有启动时已经存在的文件才跳过历史 之后出现的文件从头读取
	first := !r.attempted
	r.attempted = true
	st, err := r.fs.Stat(r.path)
	if err != nil {
		return fmt.Errorf("获取日志文件状态失败: %w", err)
	}

	if !r.started {
		if err := r.open(st); err != nil {
			return err
		}
		r.started = true
		if r.opts.StartFromEnd && first {
			// 首次启动从末尾开始 忽略历史内容
			if _, err := r.file.Seek(st.Size, io.SeekStart); err != nil {
				return fmt.Errorf("定位日志末尾失败: %w", err)
			}
			r.offset = st.Size
			return nil
		}
	} else if r.file == nil || st.Inode != r.inode || st.Size < r.offset {
		// 轮转或截断 从新文件开头读取
		if r.file != nil {
			if err := r.drain(false); err != nil {
				return err
			}
			_ = r.file.Close()
			r.file = nil
		}
		if err := r.open(st); err != nil {
			return err
		}
		r.reopens++
	}

	if st.Size == r.offset {
		return nil
	}
	return r.drain(true)
}

// drain 读取当前句柄的新增内容 bounded 为 true 时缓存行数达到上限即返回
func (r *Reader) drain(bounded bool) error {
	for {
		if bounded && len(r.pending) >= maxPendingLines {
			return nil
		}
		n, err := r.file.Read(r.buf)
		if n > 0 {
			r.offset += int64(n)
			r.split(string(r.buf[:n]))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("读取日志失败: %w", err)
		}
		if n == 0 {
			return nil
		}
	}
}

func (r *Reader) split(chunk string) {
	content := r.remainder + chunk
	lines := strings.Split(content, "\n")
	if r.discarding {
		if len(lines) == 1 {
			r.remainder = ""
			return
		}
		r.discarding = false
		lines = lines[1:]
	}
	// 最后一段没有换行 留待下次补齐
	r.remainder = lines[len(lines)-1]
	if len(r.remainder) > maxLineBytes {
		r.remainder = ""
		r.discarding = true
		r.oversized++
	}
	for _, line := range lines[:len(lines)-1] {
		if len(line) > maxLineBytes {
			r.oversized++
			continue
		}
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		r.pending = append(r.pending, line)
	}
}

func (r *Reader) open(st FileState) error {
	f, err := r.fs.Open(r.path)
	if err != nil {
		return fmt.Errorf("打开日志文件失败: %w", err)
	}
	r.file = f
	r.inode = st.Inode
	r.offset = 0
	r.remainder = ""
	r.discarding = false
	return nil
}

func (r *Reader) fail(now time.Time, err error) {
	r.lastErr = err
	r.failures++
	backoff := r.opts.RetryMin
	for i := 1; i < r.failures && backoff < r.opts.RetryMax; i++ {
		backoff *= 2
	}
	if backoff > r.opts.RetryMax {
		backoff = r.opts.RetryMax
	}
	r.nextRetry = now.Add(backoff)
}

// Err 返回最近一次读取错误
func (r *Reader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// RetryAt 返回下一次允许重试的时间 无错误时为零值
func (r *Reader) RetryAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures == 0 {
		return time.Time{}
	}
	return r.nextRetry
}

// Position 返回当前读取位置
func (r *Reader) Position() (Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pos := Position{Path: r.path, Offset: r.offset, Inode: r.inode, Reopens: r.reopens, Oversized: r.oversized}
	if r.lastErr != nil {
		pos.LastError = r.lastErr.Error()
	}
	if !r.started {
		return pos, ErrNotStarted
	}
	return pos, nil
}

// Path 返回日志路径
func (r *Reader) Path() string {
	return r.path
}

// Close 释放文件句柄
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
