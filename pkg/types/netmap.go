package types

// ============================================================================
//                              网络映射视图
// ============================================================================

// NeighbourSummary 邻居摘要
type NeighbourSummary struct {
	PeerID         string  `json:"peer_id"`
	Q8ID           string  `json:"q8id"`
	Address        string  `json:"address"`
	Name           string  `json:"name"`
	Online         bool    `json:"online"`
	RTTMs          float64 `json:"rtt_ms"`
	ConnectionType string  `json:"connection_type"`
}

// InternetNeighbourSummary Internet 邻居摘要
type InternetNeighbourSummary struct {
	PeerID  string  `json:"peer_id"`
	Name    string  `json:"name"`
	Address string  `json:"address"`
	RTTMs   float64 `json:"rtt_ms"`

	// InternetOnly 仅能通过 Internet 到达（网关节点）
	InternetOnly bool `json:"internet_only"`
}

// NetworkStats 网络统计
type NetworkStats struct {
	Total           int            `json:"total"`
	OnlineCount     int            `json:"online_count"`
	ConnectionTypes map[string]int `json:"connection_types"`
	AverageRTTMs    float64        `json:"average_rtt_ms"`
}
