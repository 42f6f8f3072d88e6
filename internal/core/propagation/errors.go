package propagation

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-meshrouter/pkg/types"
)

var (
	// ErrMalformed 消息结构错误
	ErrMalformed = fmt.Errorf("propagation: malformed message: %w", types.ErrDecode)

	// ErrUnknownModule 未知模块标签
	ErrUnknownModule = fmt.Errorf("propagation: unknown module: %w", types.ErrDecode)

	// ErrBadSignature 签名验证失败
	ErrBadSignature = fmt.Errorf("propagation: bad signature: %w", types.ErrDecode)

	// ErrDuplicate 重复消息
	ErrDuplicate = errors.New("propagation: duplicate message")

	// ErrNotNeighbour 路由信息来自非邻居
	ErrNotNeighbour = errors.New("propagation: sender is not a neighbour")

	// ErrNoRoute 没有到目标的路径
	ErrNoRoute = errors.New("propagation: no route to peer")

	// ErrQueueFull 发送队列已满
	ErrQueueFull = errors.New("propagation: send queue full")

	// ErrNotStarted 服务未启动
	ErrNotStarted = fmt.Errorf("propagation: %w", types.ErrStoreUnavailable)
)
