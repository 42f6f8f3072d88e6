package eventbus

import (
	"context"

	pkgif "github.com/dep2p/go-meshrouter/pkg/interfaces"
	"go.uber.org/fx"
)

// ============================================================================
//                              Fx 模块
// ============================================================================

// ModuleOutput 模块输出
type ModuleOutput struct {
	fx.Out

	Bus      *Bus
	EventBus pkgif.EventBus
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module(Name,
		fx.Provide(ProvideEventBus),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideEventBus 提供 EventBus 实例
func ProvideEventBus() ModuleOutput {
	bus := NewBus()
	return ModuleOutput{
		Bus:      bus,
		EventBus: bus,
	}
}

// registerLifecycle 停止时关闭总线，让所有订阅循环退出
func registerLifecycle(lc fx.Lifecycle, bus *Bus) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return bus.Close()
		},
	})
}

// ============================================================================
//                              模块元信息
// ============================================================================

const (
	// Version 模块版本
	Version = "1.0.0"
	// Name 模块名称
	Name = "eventbus"
	// Description 模块描述
	Description = "事件总线模块，提供类型安全的事件发布/订阅机制"
)
