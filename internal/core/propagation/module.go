package propagation

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-meshrouter/internal/core/identity"
	"github.com/dep2p/go-meshrouter/internal/core/metrics"
	"github.com/dep2p/go-meshrouter/internal/core/neighbour"
	"github.com/dep2p/go-meshrouter/internal/core/routing"
	"github.com/dep2p/go-meshrouter/internal/core/userdir"
	pkgif "github.com/dep2p/go-meshrouter/pkg/interfaces"
)

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	Identity   *identity.Identity
	Directory  *userdir.Directory
	Neighbours *neighbour.Table
	Routes     *routing.Table

	Config   *Config           `optional:"true"`
	Sender   pkgif.Sender      `optional:"true"`
	EventBus pkgif.EventBus    `optional:"true"`
	Clock    clock.Clock       `optional:"true"`
	Metrics  *metrics.Recorder `optional:"true"`
}

// ProvideService 提供传播服务
func ProvideService(input ModuleInput) (*Service, error) {
	cfg := DefaultConfig()
	if input.Config != nil {
		cfg = *input.Config
	}
	return New(cfg, input.Identity, input.Directory, input.Neighbours, input.Routes,
		WithSender(input.Sender),
		WithEventBus(input.EventBus),
		WithClock(input.Clock),
		WithMetrics(input.Metrics),
	)
}

// Module 返回 fx 模块
func Module() fx.Option {
	return fx.Module(Name,
		fx.Provide(ProvideService),
		fx.Invoke(registerLifecycle),
	)
}

func registerLifecycle(lc fx.Lifecycle, s *Service) {
	lc.Append(fx.Hook{
		OnStart: s.Start,
		OnStop:  s.Stop,
	})
}

// 模块元信息
const (
	Version     = "1.0.0"
	Name        = "propagation"
	Description = "传播模块，签名广播用户资料与路由信息并处理入站消息"
)
