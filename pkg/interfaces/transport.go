package interfaces

import (
	"context"

	"github.com/dep2p/go-meshrouter/pkg/types"
)

// Sender 出站发送契约
//
// 由 LAN/BLE/Internet 等传输模块实现。路由核心只负责决定
// 发给谁、走哪个传输，字节如何上线由实现者负责。
// 实现必须并发安全。
type Sender interface {
	// Send 通过指定传输把一帧数据发给直连邻居
	Send(ctx context.Context, to types.PeerID, transport types.TransportModule, data []byte) error
}

// SenderFunc 函数适配器
type SenderFunc func(ctx context.Context, to types.PeerID, transport types.TransportModule, data []byte) error

// Send 实现 Sender
func (f SenderFunc) Send(ctx context.Context, to types.PeerID, transport types.TransportModule, data []byte) error {
	return f(ctx, to, transport, data)
}
