package storage

import (
	"path/filepath"
	"time"

	"github.com/dep2p/go-meshrouter/internal/core/storage/engine"
)

// Config Storage 模块配置
type Config struct {
	// Enabled 是否启用持久化；关闭时用户目录只保存在内存
	Enabled bool

	// DataDir 数据目录，数据库位于 DataDir/meshrouter.db
	DataDir string

	// InMemory 使用 BadgerDB 内存模式（测试用）
	InMemory bool

	// SyncWrites 是否同步写入
	SyncWrites bool

	// GCInterval 值日志垃圾回收间隔
	GCInterval time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Enabled:    false,
		DataDir:    "./data",
		GCInterval: 10 * time.Minute,
	}
}

// DBPath 返回数据库目录
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "meshrouter.db")
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.Enabled && !c.InMemory && c.DataDir == "" {
		return engine.ErrInvalidConfig
	}
	return nil
}

// ToEngineConfig 转换为引擎配置
func (c Config) ToEngineConfig() *engine.Config {
	cfg := engine.DefaultConfig(c.DBPath())
	cfg.InMemory = c.InMemory
	cfg.SyncWrites = c.SyncWrites
	cfg.GCInterval = c.GCInterval
	return cfg
}
