package netmap

import "go.uber.org/fx"

// Module 返回 fx 模块
func Module() fx.Option {
	return fx.Module(Name,
		fx.Provide(New),
	)
}

// 模块元信息
const (
	Version     = "1.0.0"
	Name        = "netmap"
	Description = "网络映射模块，组合邻居、路由与用户目录生成只读视图"
)
