package identity

import (
	"fmt"

	"go.uber.org/fx"

	"github.com/dep2p/go-meshrouter/internal/util/logger"
)

var log = logger.Logger("core/identity")

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	Config *Config `optional:"true"`
}

// ProvideIdentity 创建或加载本地身份
func ProvideIdentity(input ModuleInput) (*Identity, error) {
	cfg := DefaultConfig()
	if input.Config != nil {
		cfg = *input.Config
	}

	switch {
	case cfg.PrivateKey != nil:
		return New(cfg.PrivateKey)

	case cfg.KeyFile != "":
		id, created, err := LoadOrCreate(cfg.KeyFile)
		if err != nil {
			return nil, err
		}
		if created {
			log.Info("已生成新身份", "peer", id.ID().ShortString(), "file", cfg.KeyFile)
		} else {
			log.Debug("已加载身份", "peer", id.ID().ShortString())
		}
		return id, nil

	default:
		id, err := Generate()
		if err != nil {
			return nil, fmt.Errorf("创建身份失败: %w", err)
		}
		log.Warn("未配置密钥文件，使用临时身份", "peer", id.ID().ShortString())
		return id, nil
	}
}

// Module 返回 fx 模块
func Module() fx.Option {
	return fx.Module(Name,
		fx.Provide(ProvideIdentity),
	)
}

// 模块元信息
const (
	Version     = "1.0.0"
	Name        = "identity"
	Description = "身份模块，提供 Ed25519 密钥、签名与验证"
)
