package userdir

import (
	"fmt"

	"github.com/dep2p/go-meshrouter/pkg/types"
)

var (
	// ErrNoStore 未配置持久化
	ErrNoStore = fmt.Errorf("userdir: %w", types.ErrStoreUnavailable)
)
