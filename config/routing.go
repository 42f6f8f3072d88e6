package config

import (
	"errors"
	"time"
)

// RoutingConfig 路由表配置
type RoutingConfig struct {
	// MaxHops 学习路径允许的最大跳数
	MaxHops int `json:"max_hops"`

	// LearnedTTL 学习路径未刷新时的保留时间，0 表示不过期
	LearnedTTL Duration `json:"learned_ttl"`
}

// DefaultRoutingConfig 返回默认路由表配置
func DefaultRoutingConfig() RoutingConfig {
	return RoutingConfig{
		MaxHops:    8,
		LearnedTTL: Duration(30 * time.Second),
	}
}

// Validate 验证路由表配置
func (c RoutingConfig) Validate() error {
	if c.MaxHops < 1 || c.MaxHops > 255 {
		return errors.New("routing: max_hops must be in [1, 255]")
	}
	if c.LearnedTTL < 0 {
		return errors.New("routing: learned_ttl must be >= 0")
	}
	return nil
}
