package config

import (
	"errors"
	"path/filepath"
	"time"
)

// StorageConfig 持久化配置
//
// 启用后用户目录保存在 BadgerDB 中：
//
//	${DataDir}/
//	└── meshrouter.db/
type StorageConfig struct {
	// Enabled 是否持久化用户目录
	Enabled bool `json:"enabled"`

	// DataDir 数据目录
	DataDir string `json:"data_dir"`

	// InMemory 使用内存模式（测试用，数据不落盘）
	InMemory bool `json:"in_memory"`

	// FlushInterval 脏记录落盘间隔
	FlushInterval Duration `json:"flush_interval"`
}

// DefaultStorageConfig 返回默认持久化配置
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Enabled:       false,
		DataDir:       "./data",
		FlushInterval: Duration(30 * time.Second),
	}
}

// Validate 验证持久化配置
func (c StorageConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.DataDir == "" && !c.InMemory {
		return errors.New("storage: data_dir cannot be empty")
	}
	if c.FlushInterval <= 0 {
		return errors.New("storage: flush_interval must be > 0")
	}
	return nil
}

// DBPath 返回 BadgerDB 数据库路径
func (c StorageConfig) DBPath() string {
	return filepath.Join(c.DataDir, "meshrouter.db")
}
