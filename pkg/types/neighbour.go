package types

import "time"

// ============================================================================
//                              邻居观察
// ============================================================================

// Observation 传输模块上报的一次邻居观察
type Observation struct {
	PeerID    PeerID
	Transport TransportModule

	// RTT 往返时延；RTTKnown 为 false 表示本次观察没有测量值
	RTT      time.Duration
	RTTKnown bool

	// Addr 传输相关的地址描述（可为空）
	Addr string

	// Seen 观察时间
	Seen time.Time
}

// NeighbourEntry 邻居表条目，键为 (PeerID, Transport)
type NeighbourEntry struct {
	PeerID    PeerID
	Transport TransportModule
	LastSeen  time.Time

	// RTT 以微秒精度保存
	RTT      time.Duration
	RTTKnown bool

	Addr string
}

// RTTMicros 返回 RTT 的微秒数
func (e NeighbourEntry) RTTMicros() int64 {
	return e.RTT.Microseconds()
}
