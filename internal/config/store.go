// 本文件用于配置快照的原子替换
package config

import (
	"fmt"
	"sync/atomic"

	"pool-watch/internal/models"
)

// Store 持有当前生效的配置快照 读取方拿到的快照不会被修改
type Store struct {
	path    string
	current atomic.Pointer[models.Config]
}

// NewStore 使用初始配置创建快照存储
func NewStore(path string, initial *models.Config) *Store {
	s := &Store{path: path}
	s.current.Store(initial)
	return s
}

// Load 返回当前快照
func (s *Store) Load() *models.Config {
	if s == nil {
		return nil
	}
	return s.current.Load()
}

// Maintenance 返回当前快照中的维护模式开关
func (s *Store) Maintenance() bool {
	cfg := s.Load()
	return cfg != nil && cfg.MaintenanceMode
}

// Reload 重新读取配置并整体替换快照
// 返回新旧快照 由调用方决定哪些变更需要重启才能生效
func (s *Store) Reload() (prev, next *models.Config, err error) {
	next, err = LoadConfig(s.path)
	if err != nil {
		return nil, nil, err
	}
	if err := ValidateConfig(next); err != nil {
		return nil, nil, err
	}
	prev = s.current.Swap(next)
	return prev, next, nil
}

// RestartRequired 判断两份快照之间是否存在维护模式以外的差异
func RestartRequired(prev, next *models.Config) bool {
	if prev == nil || next == nil {
		return false
	}
	a := prev.Clone()
	b := next.Clone()
	a.MaintenanceMode = false
	b.MaintenanceMode = false
	a.StartFromEnd, b.StartFromEnd = nil, nil
	return *a != *b || boolValue(prev.StartFromEnd) != boolValue(next.StartFromEnd)
}

func boolValue(v *bool) bool {
	return v != nil && *v
}

// SetMaintenance 切换维护模式 配置文件存在时同时写入运行时配置 重启后保持
func (s *Store) SetMaintenance(enabled bool) error {
	if s.path != "" {
		if _, err := SaveMaintenanceMode(s.path, enabled); err != nil {
			return err
		}
	}
	for {
		cur := s.current.Load()
		next := cur.Clone()
		if next == nil {
			return fmt.Errorf("配置尚未加载")
		}
		next.MaintenanceMode = enabled
		if s.current.CompareAndSwap(cur, next) {
			return nil
		}
	}
}
