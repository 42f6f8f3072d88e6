package config

import (
	"errors"
	"time"
)

// PropagationConfig 传播配置
type PropagationConfig struct {
	// UserInfoInterval 本地资料广播间隔
	UserInfoInterval Duration `json:"user_info_interval"`

	// RoutingInterval 路由信息广播间隔
	RoutingInterval Duration `json:"routing_interval"`

	// QueueSize 发送队列容量，满时丢弃
	QueueSize int `json:"queue_size"`

	// DedupCacheSize 入站去重缓存容量
	DedupCacheSize int `json:"dedup_cache_size"`

	// SendTimeout 单条消息发送超时
	SendTimeout Duration `json:"send_timeout"`

	// SyncCacheSize 为新邻居保留的已签名资料条数（按来源）
	SyncCacheSize int `json:"sync_cache_size"`
}

// DefaultPropagationConfig 返回默认传播配置
func DefaultPropagationConfig() PropagationConfig {
	return PropagationConfig{
		UserInfoInterval: Duration(10 * time.Second),
		RoutingInterval:  Duration(5 * time.Second),
		QueueSize:        256,
		DedupCacheSize:   4096,
		SendTimeout:      Duration(5 * time.Second),
		SyncCacheSize:    1024,
	}
}

// Validate 验证传播配置
func (c PropagationConfig) Validate() error {
	if c.UserInfoInterval <= 0 {
		return errors.New("propagation: user_info_interval must be > 0")
	}
	if c.RoutingInterval <= 0 {
		return errors.New("propagation: routing_interval must be > 0")
	}
	if c.QueueSize <= 0 {
		return errors.New("propagation: queue_size must be > 0")
	}
	if c.DedupCacheSize <= 0 {
		return errors.New("propagation: dedup_cache_size must be > 0")
	}
	if c.SendTimeout <= 0 {
		return errors.New("propagation: send_timeout must be > 0")
	}
	if c.SyncCacheSize < 0 {
		return errors.New("propagation: sync_cache_size must be >= 0")
	}
	return nil
}
