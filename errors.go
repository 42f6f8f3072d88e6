package meshrouter

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-meshrouter/pkg/types"
)

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 节点生命周期错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNotStarted 节点未启动，存储尚不可用，调用方可以稍后重试
	ErrNotStarted = fmt.Errorf("node not started: %w", types.ErrStoreUnavailable)

	// ErrAlreadyStarted 节点已启动
	ErrAlreadyStarted = errors.New("node already started")

	// ErrNodeClosed 节点已关闭
	ErrNodeClosed = errors.New("node closed")

	// ────────────────────────────────────────────────────────────────────────
	// 参数错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("invalid config")

	// ErrUserNotFound 用户不存在
	ErrUserNotFound = fmt.Errorf("user not found: %w", types.ErrNotFound)

	// ErrNoRoute 没有到达用户的路径
	ErrNoRoute = fmt.Errorf("no route to user: %w", types.ErrNotFound)
)
