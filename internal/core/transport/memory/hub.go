// Package memory 提供进程内传输
//
// Hub 模拟一组节点之间按传输划分的链路，消息同步投递给目标节点的处理函数。
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dep2p/go-meshrouter/internal/core/metrics"
	"github.com/dep2p/go-meshrouter/internal/core/transport"
	"github.com/dep2p/go-meshrouter/internal/util/logger"
	pkgif "github.com/dep2p/go-meshrouter/pkg/interfaces"
	"github.com/dep2p/go-meshrouter/pkg/types"
)

var log = logger.Logger("transport/memory")

// ReceiveFunc 入站消息处理函数
type ReceiveFunc func(ctx context.Context, raw []byte, from types.PeerID) error

// link 无向链路键
type link struct {
	a, b      types.PeerID
	transport types.TransportModule
}

func newLink(a, b types.PeerID, tr types.TransportModule) link {
	if b < a {
		a, b = b, a
	}
	return link{a: a, b: b, transport: tr}
}

// Hub 进程内传输中心
type Hub struct {
	mu     sync.RWMutex
	peers  map[types.PeerID]ReceiveFunc
	links  map[link]time.Duration
	closed bool

	bw *metrics.BandwidthCounter
}

// NewHub 创建传输中心，bw 可为 nil
func NewHub(bw *metrics.BandwidthCounter) *Hub {
	return &Hub{
		peers: make(map[types.PeerID]ReceiveFunc),
		links: make(map[link]time.Duration),
		bw:    bw,
	}
}

// Attach 接入节点
func (h *Hub) Attach(peer types.PeerID, recv ReceiveFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[peer] = recv
}

// Detach 移除节点及其所有链路
func (h *Hub) Detach(peer types.PeerID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, peer)
	for l := range h.links {
		if l.a == peer || l.b == peer {
			delete(h.links, l)
		}
	}
}

// Connect 建立链路，rtt 为模拟的往返时延
func (h *Hub) Connect(a, b types.PeerID, tr types.TransportModule, rtt time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.links[newLink(a, b, tr)] = rtt
}

// Disconnect 断开链路，返回链路是否存在
func (h *Hub) Disconnect(a, b types.PeerID, tr types.TransportModule) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	l := newLink(a, b, tr)
	_, ok := h.links[l]
	delete(h.links, l)
	return ok
}

// LinkRTT 返回链路的模拟 RTT
func (h *Hub) LinkRTT(a, b types.PeerID, tr types.TransportModule) (time.Duration, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rtt, ok := h.links[newLink(a, b, tr)]
	return rtt, ok
}

// Close 关闭传输中心，之后的发送都返回 ErrClosed
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

// Endpoint 返回某个节点的出站 Sender
func (h *Hub) Endpoint(self types.PeerID) pkgif.Sender {
	return pkgif.SenderFunc(func(ctx context.Context, to types.PeerID, tr types.TransportModule, data []byte) error {
		return h.deliver(ctx, self, to, tr, data)
	})
}

func (h *Hub) deliver(ctx context.Context, from, to types.PeerID, tr types.TransportModule, data []byte) error {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return transport.ErrClosed
	}
	recv, ok := h.peers[to]
	_, linked := h.links[newLink(from, to, tr)]
	h.mu.RUnlock()

	if !ok {
		return transport.ErrUnknownPeer
	}
	if !linked {
		return transport.ErrUnreachable
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	if h.bw != nil {
		h.bw.LogSent(tr, int64(len(buf)))
		h.bw.LogRecv(tr, int64(len(buf)))
	}

	if err := recv(ctx, buf, from); err != nil {
		// 接收方的处理错误不影响发送方
		log.Debug("接收方处理失败", "from", from.ShortString(), "to", to.ShortString(), "error", err)
	}
	return nil
}
