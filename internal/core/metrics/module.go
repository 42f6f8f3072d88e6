package metrics

import (
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Config 指标配置
type Config struct {
	// Enabled 是否注册 Prometheus 指标
	Enabled bool

	// ListenAddr /metrics 监听地址（由 cmd 使用，空表示不监听）
	ListenAddr string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		ListenAddr: "",
	}
}

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	Config   *Config              `optional:"true"`
	Registry *prometheus.Registry `optional:"true"`
	Clock    clock.Clock          `optional:"true"`
}

// ModuleOutput 模块输出
type ModuleOutput struct {
	fx.Out

	Recorder  *Recorder
	Bandwidth *BandwidthCounter
}

// ProvideMetrics 创建指标记录器
//
// 未启用时指标注册到私有 Registry，不对外暴露，带宽统计照常累计。
func ProvideMetrics(input ModuleInput) ModuleOutput {
	cfg := DefaultConfig()
	if input.Config != nil {
		cfg = *input.Config
	}

	bw := NewBandwidthCounter(input.Clock)
	reg := input.Registry
	if reg == nil || !cfg.Enabled {
		reg = prometheus.NewRegistry()
	}
	return ModuleOutput{
		Recorder:  NewRecorder(reg, bw),
		Bandwidth: bw,
	}
}

// Module 返回 fx 模块
func Module() fx.Option {
	return fx.Module(Name,
		fx.Provide(ProvideMetrics),
	)
}

// 模块元信息
const (
	Version     = "1.0.0"
	Name        = "metrics"
	Description = "指标模块，提供 Prometheus 指标与带宽统计"
)
