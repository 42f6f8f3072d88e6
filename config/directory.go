package config

import (
	"errors"
	"time"
)

// DirectoryConfig 用户目录配置
type DirectoryConfig struct {
	// InfoRequestCooldown 同一节点两次资料请求的最小间隔
	InfoRequestCooldown Duration `json:"info_request_cooldown"`

	// CooldownCacheSize 冷却表最多跟踪的节点数
	CooldownCacheSize int `json:"cooldown_cache_size"`
}

// DefaultDirectoryConfig 返回默认用户目录配置
func DefaultDirectoryConfig() DirectoryConfig {
	return DirectoryConfig{
		InfoRequestCooldown: Duration(30 * time.Second),
		CooldownCacheSize:   1024,
	}
}

// Validate 验证用户目录配置
func (c DirectoryConfig) Validate() error {
	if c.InfoRequestCooldown < 0 {
		return errors.New("directory: info_request_cooldown must be >= 0")
	}
	if c.CooldownCacheSize < 0 {
		return errors.New("directory: cooldown_cache_size must be >= 0")
	}
	return nil
}
