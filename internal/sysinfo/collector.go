package sysinfo

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/process"
)

const defaultCacheTTL = 1 * time.Second

// Collector 采集本进程资源 结果按 TTL 缓存
type Collector struct {
	mu       sync.Mutex
	cacheTTL time.Duration
	proc     *process.Process
	started  time.Time

	lastSnapshot   Snapshot
	lastSnapshotAt time.Time
}

// NewCollector 创建采集器 ttl 小于等于 0 时使用默认值
func NewCollector(ttl time.Duration) (*Collector, error) {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("获取进程信息失败: %w", err)
	}
	started := time.Now()
	if ms, err := proc.CreateTime(); err == nil && ms > 0 {
		started = time.UnixMilli(ms)
	}
	return &Collector{cacheTTL: ttl, proc: proc, started: started}, nil
}

// Snapshot 返回资源快照 单项采集失败时保留零值
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if !c.lastSnapshotAt.IsZero() && now.Sub(c.lastSnapshotAt) < c.cacheTTL {
		return c.lastSnapshot
	}

	snap := Snapshot{
		PID:         c.proc.Pid,
		Uptime:      formatDurationCN(now.Sub(c.started)),
		Goroutines:  runtime.NumGoroutine(),
		LastUpdated: now.Format("2006-01-02 15:04:05"),
	}
	snap.Host, snap.OS, snap.HostUptime = collectHostInfo()

	if pct, err := c.proc.Percent(0); err == nil {
		snap.CPUPercent = pct
	}
	if mem, err := c.proc.MemoryInfo(); err == nil && mem != nil {
		snap.RSSBytes = mem.RSS
	}
	snap.RSS = formatBytes(float64(snap.RSSBytes))
	if threads, err := c.proc.NumThreads(); err == nil {
		snap.Threads = threads
	}
	if fds, err := c.proc.NumFDs(); err == nil {
		snap.OpenFDs = fds
	}

	c.lastSnapshot = snap
	c.lastSnapshotAt = now
	return snap
}

func collectHostInfo() (string, string, string) {
	info, err := host.Info()
	if err != nil || info == nil {
		name, _ := os.Hostname()
		return fallbackString(name, "--"), runtime.GOOS, "--"
	}
	osLabel := fallbackString(info.Platform, info.OS)
	if info.PlatformVersion != "" {
		osLabel = fmt.Sprintf("%s %s", osLabel, info.PlatformVersion)
	}
	uptime := formatDurationCN(time.Duration(info.Uptime) * time.Second)
	return fallbackString(info.Hostname, "--"), osLabel, uptime
}

// Register 把进程资源注册为 Prometheus 指标
func (c *Collector) Register(reg prometheus.Registerer) error {
	gauges := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pool_watch_process_rss_bytes",
			Help: "Resident memory of the watcher process",
		}, func() float64 { return float64(c.Snapshot().RSSBytes) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pool_watch_process_cpu_percent",
			Help: "CPU usage of the watcher process",
		}, func() float64 { return c.Snapshot().CPUPercent }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pool_watch_process_open_fds",
			Help: "Open file descriptors of the watcher process",
		}, func() float64 { return float64(c.Snapshot().OpenFDs) }),
	}
	for _, g := range gauges {
		if err := reg.Register(g); err != nil {
			return fmt.Errorf("注册进程指标失败: %w", err)
		}
	}
	return nil
}
