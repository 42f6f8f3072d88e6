package propagation

import "time"

// Config 传播配置
type Config struct {
	// UserInfoInterval 本地资料广播间隔
	UserInfoInterval time.Duration

	// RoutingInterval 路由信息广播间隔
	RoutingInterval time.Duration

	// QueueSize 发送队列容量
	QueueSize int

	// DedupCacheSize 入站去重缓存容量
	DedupCacheSize int

	// DedupTTL 入站去重窗口
	DedupTTL time.Duration

	// SendTimeout 单条消息发送超时
	SendTimeout time.Duration

	// ReplyCooldown 对同一请求方两次回复资料的最小间隔
	ReplyCooldown time.Duration

	// ReplyCacheSize 回复冷却表容量
	ReplyCacheSize int

	// SyncCacheSize 为新邻居重放而保留的各来源最新资料消息数
	SyncCacheSize int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		UserInfoInterval: 10 * time.Second,
		RoutingInterval:  5 * time.Second,
		QueueSize:        256,
		DedupCacheSize:   4096,
		DedupTTL:         time.Minute,
		SendTimeout:      5 * time.Second,
		ReplyCooldown:    5 * time.Second,
		ReplyCacheSize:   256,
		SyncCacheSize:    1024,
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.UserInfoInterval <= 0 {
		c.UserInfoInterval = def.UserInfoInterval
	}
	if c.RoutingInterval <= 0 {
		c.RoutingInterval = def.RoutingInterval
	}
	if c.QueueSize <= 0 {
		c.QueueSize = def.QueueSize
	}
	if c.DedupCacheSize <= 0 {
		c.DedupCacheSize = def.DedupCacheSize
	}
	if c.DedupTTL <= 0 {
		c.DedupTTL = def.DedupTTL
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = def.SendTimeout
	}
	if c.ReplyCooldown <= 0 {
		c.ReplyCooldown = def.ReplyCooldown
	}
	if c.ReplyCacheSize <= 0 {
		c.ReplyCacheSize = def.ReplyCacheSize
	}
	if c.SyncCacheSize <= 0 {
		c.SyncCacheSize = def.SyncCacheSize
	}
	return c
}
