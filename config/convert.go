package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// FromJSON 从 JSON 数据创建配置，未出现的字段保持默认值
//
//	{
//	  "profile": {"name": "alice"},
//	  "propagation": {"user_info_interval": "5s"},
//	  "storage": {"enabled": true, "data_dir": "/var/lib/meshrouter"}
//	}
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadFile 从文件加载并验证配置
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := FromJSON(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveFile 把配置写为带缩进的 JSON
func SaveFile(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}

// CloneConfig 复制配置，子配置都是值类型
func CloneConfig(cfg *Config) *Config {
	if cfg == nil {
		return nil
	}
	cloned := *cfg
	return &cloned
}

// ApplyPreset 应用预设
//
// 支持的预设：
//   - "desktop": 默认值
//   - "mobile": 降低广播频率与缓存容量，节省电量与内存
//   - "test": 内存存储、短间隔，用于测试
func ApplyPreset(cfg *Config, presetName string) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	switch presetName {
	case "desktop":
	case "mobile":
		cfg.Propagation.UserInfoInterval = Duration(30 * time.Second)
		cfg.Propagation.RoutingInterval = Duration(15 * time.Second)
		cfg.Propagation.QueueSize = 64
		cfg.Propagation.DedupCacheSize = 1024
		cfg.Directory.CooldownCacheSize = 256
		cfg.Routing.LearnedTTL = Duration(90 * time.Second)
	case "test":
		cfg.Propagation.UserInfoInterval = Duration(100 * time.Millisecond)
		cfg.Propagation.RoutingInterval = Duration(100 * time.Millisecond)
		cfg.Storage.Enabled = true
		cfg.Storage.InMemory = true
		cfg.Metrics.Enabled = false
	default:
		return fmt.Errorf("unknown preset: %s", presetName)
	}
	return nil
}
