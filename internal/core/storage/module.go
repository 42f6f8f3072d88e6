package storage

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-meshrouter/internal/core/storage/engine"
	"github.com/dep2p/go-meshrouter/internal/core/storage/engine/badger"
	"github.com/dep2p/go-meshrouter/internal/util/logger"
)

var log = logger.Logger("core/storage")

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	Config *Config `optional:"true"`
}

// ModuleOutput 模块输出
//
// 未启用持久化时 Engine 为 nil。
type ModuleOutput struct {
	fx.Out

	Engine engine.Engine
}

// Module 返回 Storage Fx 模块
//
// 必须排在依赖 Engine 的模块之前注册，
// 这样停止时其他模块先落盘，引擎最后关闭。
func Module() fx.Option {
	return fx.Module(Name,
		fx.Provide(ProvideStorage),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideStorage 根据配置创建存储引擎
func ProvideStorage(input ModuleInput) (ModuleOutput, error) {
	cfg := DefaultConfig()
	if input.Config != nil {
		cfg = *input.Config
	}
	if err := cfg.Validate(); err != nil {
		return ModuleOutput{}, err
	}
	if !cfg.Enabled {
		log.Debug("持久化未启用，仅使用内存存储")
		return ModuleOutput{}, nil
	}

	eng, err := NewEngine(cfg)
	if err != nil {
		return ModuleOutput{}, err
	}
	return ModuleOutput{Engine: eng}, nil
}

// NewEngine 根据配置创建存储引擎
func NewEngine(cfg Config) (engine.Engine, error) {
	log.Debug("创建存储引擎", "path", cfg.DBPath(), "in_memory", cfg.InMemory)
	eng, err := badger.New(cfg.ToEngineConfig())
	if err != nil {
		log.Error("创建存储引擎失败", "error", err)
		return nil, err
	}
	return eng, nil
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(lc fx.Lifecycle, eng engine.Engine) {
	if eng == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if err := eng.Start(); err != nil {
				log.Error("存储引擎启动失败", "error", err)
				return err
			}
			log.Info("存储引擎已启动")
			return nil
		},
		OnStop: func(_ context.Context) error {
			if err := eng.Close(); err != nil {
				log.Warn("存储引擎关闭失败", "error", err)
				return err
			}
			log.Info("存储引擎已关闭")
			return nil
		},
	})
}

// 模块元信息
const (
	Version     = "1.0.0"
	Name        = "storage"
	Description = "存储模块，为用户目录提供 BadgerDB 持久化"
)
