package types

import "strings"

// ============================================================================
//                              TransportModule - 传输模块
// ============================================================================

// TransportModule 传输模块枚举
//
// TransportNone 仅作为查询结果的哨兵值（"当前没有任何传输可达"），
// 不得作为邻居表或路由表的键。
type TransportModule uint8

const (
	// TransportNone 不可达
	TransportNone TransportModule = iota
	// TransportInternet 互联网（网关）连接
	TransportInternet
	// TransportLan 局域网
	TransportLan
	// TransportBle 蓝牙低功耗
	TransportBle
	// TransportLocal 本地回环
	TransportLocal
)

// TransportPriority 直连传输的优先级顺序（高 -> 低）
//
// 同一节点同时通过多个传输直连时，按此顺序取第一个。
// Internet 被视为主传输：RTT 和地址解析都以它为准。
var TransportPriority = []TransportModule{
	TransportInternet,
	TransportLan,
	TransportBle,
	TransportLocal,
}

// String 返回连接类型标签
func (t TransportModule) String() string {
	switch t {
	case TransportInternet:
		return "internet"
	case TransportLan:
		return "lan"
	case TransportBle:
		return "ble"
	case TransportLocal:
		return "local"
	default:
		return "none"
	}
}

// Label 返回用于占位名称的显示标签
func (t TransportModule) Label() string {
	switch t {
	case TransportInternet:
		return "Internet"
	case TransportLan:
		return "LAN"
	case TransportBle:
		return "BLE"
	case TransportLocal:
		return "Local"
	default:
		return "Unknown"
	}
}

// IsValid 检查是否为可用作键的真实传输
func (t TransportModule) IsValid() bool {
	return t >= TransportInternet && t <= TransportLocal
}

// Rank 返回优先级序号，越小越优先；无效值排在最后
func (t TransportModule) Rank() int {
	for i, p := range TransportPriority {
		if p == t {
			return i
		}
	}
	return len(TransportPriority)
}

// ParseTransportModule 从标签解析传输模块
func ParseTransportModule(s string) (TransportModule, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "internet":
		return TransportInternet, nil
	case "lan":
		return TransportLan, nil
	case "ble":
		return TransportBle, nil
	case "local":
		return TransportLocal, nil
	case "none", "":
		return TransportNone, nil
	default:
		return TransportNone, ErrInvalidTransport
	}
}
