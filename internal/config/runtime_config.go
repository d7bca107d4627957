// 本文件用于运行时配置的读取与持久化 维护模式开关写在独立的 runtime 文件中 重载信号时重新读取
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"pool-watch/internal/models"
)

type runtimeConfig struct {
	MaintenanceMode *bool `yaml:"maintenance_mode"`
}

// RuntimeConfigPath 返回运行时配置文件路径 config.yaml -> config.runtime.yaml
func RuntimeConfigPath(configPath string) string {
	cleaned := strings.TrimSpace(configPath)
	if cleaned == "" {
		return ""
	}
	ext := filepath.Ext(cleaned)
	if ext == "" {
		return cleaned + ".runtime.yaml"
	}
	return strings.TrimSuffix(cleaned, ext) + ".runtime" + ext
}

func loadRuntimeConfig(configPath string) (*runtimeConfig, error) {
	path := RuntimeConfigPath(configPath)
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取运行时配置文件失败: %s: %w", path, err)
	}
	var cfg runtimeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析运行时配置文件失败: %s: %w", path, err)
	}
	return &cfg, nil
}

func applyRuntimeConfig(cfg *models.Config, runtime *runtimeConfig) {
	if cfg == nil || runtime == nil {
		return
	}
	if runtime.MaintenanceMode != nil {
		cfg.MaintenanceMode = *runtime.MaintenanceMode
	}
}

// SaveMaintenanceMode 写入维护模式开关 生效需要进程收到重载信号
func SaveMaintenanceMode(configPath string, enabled bool) (string, error) {
	path := RuntimeConfigPath(configPath)
	if path == "" {
		return "", fmt.Errorf("未指定配置文件 无法写入运行时配置")
	}
	data, err := yaml.Marshal(&runtimeConfig{MaintenanceMode: boolPtr(enabled)})
	if err != nil {
		return "", fmt.Errorf("序列化运行时配置失败: %w", err)
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("写入运行时配置文件失败: %s: %w", path, err)
	}
	return path, nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(dir, "pool-watch-*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
