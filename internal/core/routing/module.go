package routing

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-meshrouter/internal/core/identity"
	"github.com/dep2p/go-meshrouter/internal/core/metrics"
	"github.com/dep2p/go-meshrouter/internal/core/userdir"
	pkgif "github.com/dep2p/go-meshrouter/pkg/interfaces"
	"github.com/dep2p/go-meshrouter/pkg/types"
)

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	Config    *Config            `optional:"true"`
	Identity  *identity.Identity `optional:"true"`
	Directory *userdir.Directory `optional:"true"`
	EventBus  pkgif.EventBus     `optional:"true"`
	Clock     clock.Clock        `optional:"true"`
	Metrics   *metrics.Recorder  `optional:"true"`
}

// ProvideTable 提供路由表
func ProvideTable(input ModuleInput) (*Table, error) {
	cfg := DefaultConfig()
	if input.Config != nil {
		cfg = *input.Config
	}

	opts := []Option{
		WithClock(input.Clock),
		WithMetrics(input.Metrics),
	}
	if input.Identity != nil {
		opts = append(opts, WithSelf(input.Identity.ID()))
	}
	if input.Directory != nil {
		opts = append(opts, WithDirectory(input.Directory))
	}
	if input.EventBus != nil {
		em, err := input.EventBus.Emitter(new(types.EvtPresenceChanged))
		if err != nil {
			return nil, fmt.Errorf("routing: emitter: %w", err)
		}
		opts = append(opts, WithPresenceEmitter(em))
	}
	return New(cfg, opts...), nil
}

// Module 返回 fx 模块
func Module() fx.Option {
	return fx.Module(Name,
		fx.Provide(ProvideTable),
	)
}

// 模块元信息
const (
	Version     = "1.0.0"
	Name        = "routing"
	Description = "路由表模块，维护多路径并推导用户在线状态"
)
