package propagation

import (
	"context"

	"github.com/google/uuid"

	"github.com/dep2p/go-meshrouter/pkg/types"
)

// outbound 待发送消息
type outbound struct {
	id        uuid.UUID
	to        types.PeerID
	transport types.TransportModule
	module    MsgModule
	data      []byte
}

// sendQueue 有界 FIFO 发送队列
type sendQueue struct {
	ch chan outbound
}

func newSendQueue(size int) *sendQueue {
	return &sendQueue{ch: make(chan outbound, size)}
}

// push 非阻塞入队，队列满时返回 false
func (q *sendQueue) push(msg outbound) bool {
	select {
	case q.ch <- msg:
		return true
	default:
		return false
	}
}

// pop 阻塞出队，ctx 取消时返回 false
func (q *sendQueue) pop(ctx context.Context) (outbound, bool) {
	select {
	case <-ctx.Done():
		return outbound{}, false
	case msg := <-q.ch:
		return msg, true
	}
}

// len 当前队列深度
func (q *sendQueue) len() int {
	return len(q.ch)
}
