// 本文件用于定义访问日志记录与池标识
package accesslog

import (
	"strings"
	"time"
)

// Pool 表示后端池
type Pool string

const (
	// PoolPrimary 表示主池
	PoolPrimary Pool = "PRIMARY"
	// PoolBackup 表示备池
	PoolBackup Pool = "BACKUP"
	// PoolUnknown 表示无法识别的池 计入错误率但不参与切换检测
	PoolUnknown Pool = "UNKNOWN"
)

// Known 返回是否为主池或备池
func (p Pool) Known() bool {
	return p == PoolPrimary || p == PoolBackup
}

// ErrorSource 表示错误判定依据
type ErrorSource string

const (
	// ErrorFromUpstream 任一上游尝试返回 5xx 即视为错误
	ErrorFromUpstream ErrorSource = "upstream"
	// ErrorFromClient 仅看返回给客户端的状态码
	ErrorFromClient ErrorSource = "client"
)

// Record 表示一行解析后的访问日志 创建后不再修改
type Record struct {
	Seq                  uint64
	Time                 time.Time
	ClientAddr           string
	Request              string
	Pool                 Pool
	RawPool              string
	Release              string
	Status               int
	UpstreamStatuses     []int
	UpstreamAddr         string
	RequestTime          float64
	UpstreamResponseTime float64
	IsError              bool
}

// PoolMapper 把日志中的池标签映射为主备池
type PoolMapper struct {
	primary string
	backup  string
}

// NewPoolMapper 创建池映射 标签比较忽略大小写
func NewPoolMapper(primary, backup string) PoolMapper {
	return PoolMapper{
		primary: strings.ToLower(strings.TrimSpace(primary)),
		backup:  strings.ToLower(strings.TrimSpace(backup)),
	}
}

// Map 返回标签对应的池
func (m PoolMapper) Map(raw string) Pool {
	label := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case label == "" || label == "-":
		return PoolUnknown
	case label == m.primary:
		return PoolPrimary
	case label == m.backup:
		return PoolBackup
	default:
		return PoolUnknown
	}
}

// Label 返回池在日志中的标签 用于告警文案
func (m PoolMapper) Label(pool Pool) string {
	switch pool {
	case PoolPrimary:
		return m.primary
	case PoolBackup:
		return m.backup
	default:
		return "unknown"
	}
}

func classifyError(source ErrorSource, status int, upstream []int) bool {
	if source == ErrorFromUpstream && len(upstream) > 0 {
		for _, code := range upstream {
			if code >= 500 {
				return true
			}
		}
		return false
	}
	return status >= 500
}
