package router

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-meshrouter/internal/core/neighbour"
	"github.com/dep2p/go-meshrouter/internal/core/propagation"
	"github.com/dep2p/go-meshrouter/internal/core/routing"
	"github.com/dep2p/go-meshrouter/internal/core/userdir"
	pkgif "github.com/dep2p/go-meshrouter/pkg/interfaces"
	"github.com/dep2p/go-meshrouter/pkg/types"
)

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	Neighbours  *neighbour.Table
	Directory   *userdir.Directory
	Routes      *routing.Table
	Propagation *propagation.Service `optional:"true"`
	EventBus    pkgif.EventBus       `optional:"true"`
	Clock       clock.Clock          `optional:"true"`
}

// ProvideService 提供入站协调器
func ProvideService(input ModuleInput) (*Service, error) {
	opts := []Option{WithClock(input.Clock)}
	if input.Propagation != nil {
		opts = append(opts, WithHandler(input.Propagation))
	}
	if input.EventBus != nil {
		em, err := input.EventBus.Emitter(new(types.EvtNeighbourChanged))
		if err != nil {
			return nil, fmt.Errorf("router: emitter: %w", err)
		}
		opts = append(opts, WithEmitter(em))
	}
	return New(input.Neighbours, input.Directory, input.Routes, opts...), nil
}

// Module 返回 fx 模块
func Module() fx.Option {
	return fx.Module(Name,
		fx.Provide(ProvideService),
	)
}

// 模块元信息
const (
	Version     = "1.0.0"
	Name        = "router"
	Description = "入站协调模块，把传输模块的事件写入各个存储"
)
