package meshrouter

import (
	"crypto/ed25519"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-meshrouter/config"
	pkgif "github.com/dep2p/go-meshrouter/pkg/interfaces"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// config 完整配置，未设置时使用 config.NewConfig()
	config *config.Config

	// privateKey 直接注入的私钥，优先于 config.Identity.KeyFile
	privateKey ed25519.PrivateKey

	// sender 出站传输
	sender pkgif.Sender

	// registry Prometheus 注册表
	registry *prometheus.Registry

	// clock 时钟（测试注入 mock）
	clock clock.Clock

	// userFxOptions 额外的 fx 选项
	userFxOptions []fx.Option
}

func newOptions() *options {
	return &options{
		config: config.NewConfig(),
	}
}

// WithConfig 使用完整配置
//
// 配置会被复制，之后修改 cfg 不影响节点。
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return fmt.Errorf("%w: nil config", ErrInvalidConfig)
		}
		o.config = config.CloneConfig(cfg)
		return nil
	}
}

// WithPreset 在当前配置上应用预设（desktop / mobile / test）
func WithPreset(name string) Option {
	return func(o *options) error {
		if err := config.ApplyPreset(o.config, name); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		return nil
	}
}

// WithPrivateKey 使用指定的 Ed25519 私钥作为节点身份
func WithPrivateKey(priv ed25519.PrivateKey) Option {
	return func(o *options) error {
		if len(priv) != ed25519.PrivateKeySize {
			return fmt.Errorf("%w: private key size %d", ErrInvalidConfig, len(priv))
		}
		o.privateKey = priv
		return nil
	}
}

// WithSender 设置出站传输
//
// 未设置时消息只入队不发送，适合只做本地查询的场景。
func WithSender(s pkgif.Sender) Option {
	return func(o *options) error {
		o.sender = s
		return nil
	}
}

// WithRegistry 在指定的 Prometheus 注册表上注册指标
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) error {
		o.registry = reg
		return nil
	}
}

// WithClock 设置时钟
func WithClock(clk clock.Clock) Option {
	return func(o *options) error {
		o.clock = clk
		return nil
	}
}

// WithFxOption 追加 fx 选项（高级用法，例如替换某个模块的依赖）
func WithFxOption(opts ...fx.Option) Option {
	return func(o *options) error {
		o.userFxOptions = append(o.userFxOptions, opts...)
		return nil
	}
}
