package interfaces

import (
	"context"

	"github.com/dep2p/go-meshrouter/pkg/types"
)

// InfoRequester 用户信息请求契约
//
// 用户目录发现某个节点缺少资料（记录不存在或名字为空）时，
// 通过它向网络层发出一次资料请求。去重由调用方（用户目录）负责。
type InfoRequester interface {
	RequestUserInfo(ctx context.Context, peer types.PeerID) error
}

// InfoRequesterFunc 函数适配器
type InfoRequesterFunc func(ctx context.Context, peer types.PeerID) error

// RequestUserInfo 实现 InfoRequester
func (f InfoRequesterFunc) RequestUserInfo(ctx context.Context, peer types.PeerID) error {
	return f(ctx, peer)
}
