package sysinfo

// Snapshot 表示当前进程与主机的资源快照
type Snapshot struct {
	Host        string  `json:"host"`
	OS          string  `json:"os"`
	HostUptime  string  `json:"hostUptime"`
	PID         int32   `json:"pid"`
	Uptime      string  `json:"uptime"`
	CPUPercent  float64 `json:"cpuPercent"`
	RSSBytes    uint64  `json:"rssBytes"`
	RSS         string  `json:"rss"`
	Threads     int32   `json:"threads"`
	OpenFDs     int32   `json:"openFds"`
	Goroutines  int     `json:"goroutines"`
	LastUpdated string  `json:"lastUpdated"`
}
