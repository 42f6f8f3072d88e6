package routing

import "time"

// Config 路由表配置
type Config struct {
	// MaxHops 学习路径允许的最大跳数，超出的条目被丢弃
	MaxHops uint8

	// LearnedTTL 学习路径未被刷新的最长保留时间，0 表示不过期
	LearnedTTL time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MaxHops:    8,
		LearnedTTL: 30 * time.Second,
	}
}

func (c Config) normalize() Config {
	if c.MaxHops == 0 {
		c.MaxHops = DefaultConfig().MaxHops
	}
	return c
}
