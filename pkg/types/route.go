package types

import (
	"encoding/json"
	"time"
)

// ============================================================================
//                              RouteEntry - 路由连接条目
// ============================================================================

// RouteEntry 到达某用户的一条路径
//
// HopCount 为 0 表示直连邻居。同一 (用户, Via, Transport) 只保留最新的一条。
type RouteEntry struct {
	Via       PeerID
	Transport TransportModule
	HopCount  uint8
	RTT       time.Duration
	Updated   time.Time
}

// Better 判断 e 是否优于 other
//
// 比较顺序：跳数少者优先，其次 RTT 低者优先，再次按传输优先级，
// 最后按 Via 字节序保证结果确定。
func (e RouteEntry) Better(other RouteEntry) bool {
	if e.HopCount != other.HopCount {
		return e.HopCount < other.HopCount
	}
	if e.RTT != other.RTT {
		return e.RTT < other.RTT
	}
	if e.Transport.Rank() != other.Transport.Rank() {
		return e.Transport.Rank() < other.Transport.Rank()
	}
	return e.Via < other.Via
}

// MarshalJSON 输出面向 UI 的连接摘要
func (e RouteEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Module   string  `json:"module"`
		HopCount uint8   `json:"hop_count"`
		RTTMs    float64 `json:"rtt_ms"`
		Via      string  `json:"via"`
	}{
		Module:   e.Transport.String(),
		HopCount: e.HopCount,
		RTTMs:    float64(e.RTT.Microseconds()) / 1000.0,
		Via:      e.Via.String(),
	})
}

// RoutingInfoEntry 邻居广播的路由信息中的一项
type RoutingInfoEntry struct {
	User     PeerID
	HopCount uint8
	RTT      time.Duration
}
