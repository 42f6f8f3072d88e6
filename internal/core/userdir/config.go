package userdir

import "time"

// Config 用户目录配置
type Config struct {
	// InfoRequestCooldown 同一节点两次资料请求的最小间隔
	InfoRequestCooldown time.Duration

	// CooldownCacheSize 冷却表最多跟踪的节点数
	CooldownCacheSize int

	// FlushInterval 脏记录落盘间隔（仅在启用持久化时生效）
	FlushInterval time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		InfoRequestCooldown: 30 * time.Second,
		CooldownCacheSize:   1024,
		FlushInterval:       30 * time.Second,
	}
}

// normalize 填充零值
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.InfoRequestCooldown <= 0 {
		c.InfoRequestCooldown = def.InfoRequestCooldown
	}
	if c.CooldownCacheSize <= 0 {
		c.CooldownCacheSize = def.CooldownCacheSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = def.FlushInterval
	}
	return c
}
