package userdir

import (
	"context"

	pkgif "github.com/dep2p/go-meshrouter/pkg/interfaces"
	"github.com/dep2p/go-meshrouter/pkg/types"
)

// busRequester 把资料请求转成 EvtUserInfoRequested 事件
//
// 目录不直接依赖传播层，由传播服务订阅该事件并发送请求。
type busRequester struct {
	em pkgif.Emitter
}

// NewBusRequester 基于事件发射器创建 InfoRequester
func NewBusRequester(em pkgif.Emitter) pkgif.InfoRequester {
	return &busRequester{em: em}
}

// RequestUserInfo 实现 InfoRequester
func (r *busRequester) RequestUserInfo(_ context.Context, peer types.PeerID) error {
	return r.em.Emit(types.EvtUserInfoRequested{PeerID: peer})
}
