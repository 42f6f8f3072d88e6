// Package config 提供 meshrouter 的统一配置
//
// 主 Config 结构体按关注点组合子配置，每个子配置在独立文件中定义，
// 提供 DefaultXxxConfig 与 Validate。支持从 JSON 加载与保存：
//
//	cfg, err := config.LoadFile("meshrouter.json")
//	cfg.Propagation.UserInfoInterval = config.Duration(5 * time.Second)
//
// 时间字段使用 Duration，JSON 中既可以写 "30s" 也可以写纳秒数。
package config

import "go.uber.org/multierr"

// Config meshrouter 完整配置
type Config struct {
	// Identity 身份与密钥
	Identity IdentityConfig `json:"identity"`

	// Profile 本地用户资料，启动时写入用户目录并广播
	Profile ProfileConfig `json:"profile"`

	// Directory 用户目录
	Directory DirectoryConfig `json:"directory"`

	// Routing 路由表
	Routing RoutingConfig `json:"routing"`

	// Propagation 资料与路由信息传播
	Propagation PropagationConfig `json:"propagation"`

	// Storage 持久化
	Storage StorageConfig `json:"storage"`

	// Metrics 指标
	Metrics MetricsConfig `json:"metrics"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Identity:    DefaultIdentityConfig(),
		Profile:     DefaultProfileConfig(),
		Directory:   DefaultDirectoryConfig(),
		Routing:     DefaultRoutingConfig(),
		Propagation: DefaultPropagationConfig(),
		Storage:     DefaultStorageConfig(),
		Metrics:     DefaultMetricsConfig(),
	}
}

// Validate 验证所有子配置，返回合并后的全部错误
func (c *Config) Validate() error {
	return multierr.Combine(
		c.Identity.Validate(),
		c.Profile.Validate(),
		c.Directory.Validate(),
		c.Routing.Validate(),
		c.Propagation.Validate(),
		c.Storage.Validate(),
		c.Metrics.Validate(),
	)
}
