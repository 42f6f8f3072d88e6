package routing

import (
	"fmt"

	"github.com/dep2p/go-meshrouter/pkg/types"
)

var (
	// ErrInvalidTransport 传输不能作为路径键
	ErrInvalidTransport = fmt.Errorf("routing: %w", types.ErrInvalidTransport)

	// ErrEmptyPeer 节点 ID 为空
	ErrEmptyPeer = fmt.Errorf("routing: %w", types.ErrInvalidIdentity)

	// ErrSelfRoute 不保存到自身的路径
	ErrSelfRoute = fmt.Errorf("routing: route to self")

	// ErrStaleRoutingInfo 路由信息不新于该链路上已生效的广播
	ErrStaleRoutingInfo = fmt.Errorf("routing: stale routing info")
)
