package meshrouter

import (
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-meshrouter/config"
	"github.com/dep2p/go-meshrouter/internal/core/eventbus"
	"github.com/dep2p/go-meshrouter/internal/core/identity"
	"github.com/dep2p/go-meshrouter/internal/core/metrics"
	"github.com/dep2p/go-meshrouter/internal/core/neighbour"
	"github.com/dep2p/go-meshrouter/internal/core/netmap"
	"github.com/dep2p/go-meshrouter/internal/core/propagation"
	"github.com/dep2p/go-meshrouter/internal/core/router"
	"github.com/dep2p/go-meshrouter/internal/core/routing"
	"github.com/dep2p/go-meshrouter/internal/core/storage"
	"github.com/dep2p/go-meshrouter/internal/core/userdir"
	"github.com/dep2p/go-meshrouter/internal/util/logger"
	pkgif "github.com/dep2p/go-meshrouter/pkg/interfaces"
)

var fxLogger = logger.Logger("meshrouter/fx")

// buildFxApp 构建 Fx 应用
//
// 模块注册顺序即启动顺序，停止时逆序：
// storage 必须在 userdir 之前，保证引擎在目录落盘之后才关闭。
func buildFxApp(o *options, node *Node) *fx.App {
	cfg := o.config
	modules := make([]fx.Option, 0, 24)

	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置注入
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, fx.Supply(
		identityConfig(cfg, o),
		storageConfig(cfg),
		userdirConfig(cfg),
		routingConfig(cfg),
		propagationConfig(cfg),
		metricsConfig(cfg),
	))

	// ════════════════════════════════════════════════════════════════════════
	// 2. 外部依赖（可选）
	// ════════════════════════════════════════════════════════════════════════
	if o.clock != nil {
		clk := o.clock
		modules = append(modules, fx.Provide(func() clock.Clock { return clk }))
	}
	if o.sender != nil {
		sender := o.sender
		modules = append(modules, fx.Provide(func() pkgif.Sender { return sender }))
	}
	if o.registry != nil {
		reg := o.registry
		modules = append(modules, fx.Provide(func() *prometheus.Registry { return reg }))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 3. 基础模块
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		identity.Module(),
		eventbus.Module(),
		metrics.Module(),
	)
	fxLogger.Debug("基础模块已加载")

	// ════════════════════════════════════════════════════════════════════════
	// 4. 存储（必须在用户目录之前）
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, storage.Module())
	if cfg.Storage.Enabled {
		fxLogger.Debug("持久化已启用", "path", cfg.Storage.DBPath(), "in_memory", cfg.Storage.InMemory)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 5. 三个存储：用户目录、邻居表、路由表
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		userdir.Module(),
		neighbour.Module(),
		routing.Module(),
	)

	// ════════════════════════════════════════════════════════════════════════
	// 6. 传播、入站协调与网络映射
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		propagation.Module(),
		router.Module(),
		netmap.Module(),
	)

	// ════════════════════════════════════════════════════════════════════════
	// 7. 用户自定义 Fx 选项
	// ════════════════════════════════════════════════════════════════════════
	if len(o.userFxOptions) > 0 {
		modules = append(modules, o.userFxOptions...)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 8. Node 组件注入
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, fx.Invoke(injectNodeComponents(node)))

	// ════════════════════════════════════════════════════════════════════════
	// 9. Fx 配置
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		// 禁用 Fx 日志输出（避免干扰用户日志）
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)

	return fx.New(modules...)
}

// ════════════════════════════════════════════════════════════════════════════
// 组件注入辅助函数
// ════════════════════════════════════════════════════════════════════════════

// nodeInjectParams Node 组件注入参数
type nodeInjectParams struct {
	fx.In

	Identity    *identity.Identity
	EventBus    pkgif.EventBus
	Directory   *userdir.Directory
	Neighbours  *neighbour.Table
	Routes      *routing.Table
	Propagation *propagation.Service
	Router      *router.Service
	Mapper      *netmap.Mapper
	Bandwidth   *metrics.BandwidthCounter

	Clock clock.Clock `optional:"true"`
}

// injectNodeComponents 创建 Node 组件注入函数
func injectNodeComponents(node *Node) interface{} {
	return func(params nodeInjectParams) {
		node.id = params.Identity
		node.bus = params.EventBus
		node.dir = params.Directory
		node.neighbours = params.Neighbours
		node.routes = params.Routes
		node.propagation = params.Propagation
		node.router = params.Router
		node.mapper = params.Mapper
		node.bandwidth = params.Bandwidth
		if params.Clock != nil {
			node.clock = params.Clock
		}
	}
}

// ════════════════════════════════════════════════════════════════════════════
// 配置转换函数
// ════════════════════════════════════════════════════════════════════════════

func identityConfig(cfg *config.Config, o *options) *identity.Config {
	return &identity.Config{
		PrivateKey: o.privateKey,
		KeyFile:    cfg.Identity.KeyFile,
	}
}

func storageConfig(cfg *config.Config) *storage.Config {
	c := storage.DefaultConfig()
	c.Enabled = cfg.Storage.Enabled
	c.DataDir = cfg.Storage.DataDir
	c.InMemory = cfg.Storage.InMemory
	return &c
}

func userdirConfig(cfg *config.Config) *userdir.Config {
	return &userdir.Config{
		InfoRequestCooldown: cfg.Directory.InfoRequestCooldown.Duration(),
		CooldownCacheSize:   cfg.Directory.CooldownCacheSize,
		FlushInterval:       cfg.Storage.FlushInterval.Duration(),
	}
}

func routingConfig(cfg *config.Config) *routing.Config {
	return &routing.Config{
		MaxHops:    uint8(cfg.Routing.MaxHops),
		LearnedTTL: cfg.Routing.LearnedTTL.Duration(),
	}
}

func propagationConfig(cfg *config.Config) *propagation.Config {
	c := propagation.DefaultConfig()
	c.UserInfoInterval = cfg.Propagation.UserInfoInterval.Duration()
	c.RoutingInterval = cfg.Propagation.RoutingInterval.Duration()
	c.QueueSize = cfg.Propagation.QueueSize
	c.DedupCacheSize = cfg.Propagation.DedupCacheSize
	c.SendTimeout = cfg.Propagation.SendTimeout.Duration()
	c.SyncCacheSize = cfg.Propagation.SyncCacheSize
	return &c
}

func metricsConfig(cfg *config.Config) *metrics.Config {
	return &metrics.Config{
		Enabled:    cfg.Metrics.Enabled,
		ListenAddr: cfg.Metrics.ListenAddr,
	}
}
