package userdir

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-meshrouter/internal/core/metrics"
	"github.com/dep2p/go-meshrouter/internal/core/storage/engine"
	"github.com/dep2p/go-meshrouter/internal/core/storage/kv"
	pkgif "github.com/dep2p/go-meshrouter/pkg/interfaces"
	"github.com/dep2p/go-meshrouter/pkg/types"
)

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	Config    *Config             `optional:"true"`
	Clock     clock.Clock         `optional:"true"`
	Engine    engine.Engine       `optional:"true"`
	Requester pkgif.InfoRequester `optional:"true"`
	EventBus  pkgif.EventBus      `optional:"true"`
	Metrics   *metrics.Recorder   `optional:"true"`
}

// ProvideDirectory 提供用户目录
//
// 未显式提供 InfoRequester 时，若有事件总线则通过
// EvtUserInfoRequested 事件转交给传播服务。
func ProvideDirectory(input ModuleInput) (*Directory, error) {
	cfg := DefaultConfig()
	if input.Config != nil {
		cfg = *input.Config
	}

	opts := []Option{
		WithClock(input.Clock),
		WithMetrics(input.Metrics),
	}
	if input.Engine != nil {
		opts = append(opts, WithStore(kv.New(input.Engine, storePrefix)))
	}

	requester := input.Requester
	if input.EventBus != nil {
		updated, err := input.EventBus.Emitter(new(types.EvtUserUpdated))
		if err != nil {
			return nil, fmt.Errorf("userdir: emitter: %w", err)
		}
		opts = append(opts, WithUpdateEmitter(updated))

		if requester == nil {
			em, err := input.EventBus.Emitter(new(types.EvtUserInfoRequested))
			if err != nil {
				return nil, fmt.Errorf("userdir: emitter: %w", err)
			}
			requester = NewBusRequester(em)
		}
	}
	if requester != nil {
		opts = append(opts, WithRequester(requester))
	}

	return New(cfg, opts...), nil
}

// Module 返回 fx 模块
//
// 依赖 storage 模块时须排在其后注册，停止时先落盘再关闭引擎。
func Module() fx.Option {
	return fx.Module(Name,
		fx.Provide(ProvideDirectory),
		fx.Invoke(registerLifecycle),
	)
}

func registerLifecycle(lc fx.Lifecycle, d *Directory) {
	lc.Append(fx.Hook{
		OnStart: d.Start,
		OnStop:  d.Stop,
	})
}

// 模块元信息
const (
	Version     = "1.0.0"
	Name        = "userdir"
	Description = "用户目录模块，按字段 last-write-wins 合并用户资料"
)
