package types

// ============================================================================
//                              事件定义
// ============================================================================
//
// 通过事件总线发布，订阅时传入指针类型，例如：
//
//	sub, _ := bus.Subscribe(new(types.EvtPresenceChanged))

// EvtNeighbourChanged 邻居出现或丢失
type EvtNeighbourChanged struct {
	PeerID    PeerID
	Transport TransportModule
	Lost      bool
}

// EvtUserUpdated 用户记录被网络更新修改
type EvtUserUpdated struct {
	Q8ID   Q8ID
	PeerID PeerID
}

// EvtPresenceChanged 用户在线状态变化（Offline <-> Online）
type EvtPresenceChanged struct {
	Q8ID   Q8ID
	PeerID PeerID
	Online bool
}

// EvtUserInfoRequested 需要向网络请求某用户的资料
type EvtUserInfoRequested struct {
	PeerID PeerID
}
