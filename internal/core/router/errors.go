package router

import (
	"fmt"

	"github.com/dep2p/go-meshrouter/pkg/types"
)

var (
	// ErrNoHandler 未配置入站消息处理器
	ErrNoHandler = fmt.Errorf("router: inbound handler: %w", types.ErrStoreUnavailable)
)
