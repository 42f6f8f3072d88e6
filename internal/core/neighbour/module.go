package neighbour

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-meshrouter/internal/core/metrics"
)

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	Clock   clock.Clock       `optional:"true"`
	Metrics *metrics.Recorder `optional:"true"`
}

// ProvideTable 提供邻居表
func ProvideTable(input ModuleInput) *Table {
	return New(WithClock(input.Clock), WithMetrics(input.Metrics))
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
	Name        = "neighbour"
	Description = "邻居表模块，按传输保存直连节点的最近观察与 RTT"
)
