package netmap

import (
	"context"
	"fmt"

	"github.com/dep2p/go-meshrouter/internal/core/neighbour"
	"github.com/dep2p/go-meshrouter/internal/core/routing"
	"github.com/dep2p/go-meshrouter/internal/core/userdir"
	"github.com/dep2p/go-meshrouter/internal/util/logger"
	"github.com/dep2p/go-meshrouter/pkg/types"
)

var log = logger.Logger("core/netmap")

// Mapper 网络映射视图
type Mapper struct {
	dir        *userdir.Directory
	neighbours *neighbour.Table
	routes     *routing.Table
}

// New 创建网络映射视图
func New(dir *userdir.Directory, neighbours *neighbour.Table, routes *routing.Table) *Mapper {
	return &Mapper{
		dir:        dir,
		neighbours: neighbours,
		routes:     routes,
	}
}

// PlaceholderName 为没有名字的节点生成占位名称，例如 "LAN Node 3vQB7B6M"
func PlaceholderName(peer types.PeerID, transport types.TransportModule) string {
	return fmt.Sprintf("%s Node %s", transport.Label(), peer.ShortString())
}

// rttMs 微秒换算为毫秒
func rttMs(e types.NeighbourEntry) float64 {
	if !e.RTTKnown {
		return 0
	}
	return float64(e.RTTMicros()) / 1000.0
}

// displayName 返回节点显示名，没有名字时请求资料并返回占位名称
func (m *Mapper) displayName(ctx context.Context, peer types.PeerID, transport types.TransportModule) string {
	if rec, ok := m.dir.GetByPeer(peer); ok && rec.HasName() {
		return rec.Name
	}
	if m.dir.RequestMissingInfo(ctx, peer) {
		log.Debug("请求未知节点资料", "peer", peer.ShortString(), "transport", transport)
	}
	return PlaceholderName(peer, transport)
}

// ============================================================================
//                              用户
// ============================================================================

// LookupUser 按 Q8ID 查询用户摘要
func (m *Mapper) LookupUser(q types.Q8ID) (types.UserSummary, bool) {
	rec, ok := m.dir.Get(q)
	if !ok {
		return types.UserSummary{}, false
	}
	return m.routes.Summary(rec), true
}

// PeerIDToQ8ID 把 Base58 PeerID 转换为 Base58 Q8ID
func (m *Mapper) PeerIDToQ8ID(s string) (string, bool) {
	peer, err := types.PeerIDFromBase58(s)
	if err != nil {
		return "", false
	}
	return types.ToQ8ID(peer).String(), true
}

// Q8IDToPeerID 把 Base58 Q8ID 解析为已知用户的 Base58 PeerID
//
// Q8ID 是单向摘要，只有目录中已有记录的用户才能反查。
func (m *Mapper) Q8IDToPeerID(s string) (string, bool) {
	q, err := types.ParseQ8ID(s)
	if err != nil {
		return "", false
	}
	rec, ok := m.dir.Get(q)
	if !ok {
		return "", false
	}
	return rec.PeerID.String(), true
}

// ============================================================================
//                              邻居
// ============================================================================

// ListAllNeighbours 列出所有直连邻居，每个节点取优先级最高的传输
func (m *Mapper) ListAllNeighbours(ctx context.Context) []types.NeighbourSummary {
	peers := m.neighbours.AllNeighbours()
	out := make([]types.NeighbourSummary, 0, len(peers))
	for _, peer := range peers {
		entry, ok := m.neighbours.Best(peer)
		if !ok {
			// 枚举与读取之间邻居已丢失
			continue
		}
		out = append(out, types.NeighbourSummary{
			PeerID:         peer.String(),
			Q8ID:           types.ToQ8ID(peer).String(),
			Address:        entry.Addr,
			Name:           m.displayName(ctx, peer, entry.Transport),
			Online:         m.routes.IsOnline(peer),
			RTTMs:          rttMs(entry),
			ConnectionType: entry.Transport.String(),
		})
	}
	return out
}

// ListInternetNeighbours 列出 Internet 邻居
func (m *Mapper) ListInternetNeighbours(ctx context.Context) []types.InternetNeighbourSummary {
	only := make(map[types.PeerID]struct{})
	for _, p := range m.neighbours.InternetOnlyNodes() {
		only[p] = struct{}{}
	}

	entries := m.neighbours.Entries(types.TransportInternet)
	out := make([]types.InternetNeighbourSummary, 0, len(entries))
	for _, e := range entries {
		_, internetOnly := only[e.PeerID]
		out = append(out, types.InternetNeighbourSummary{
			PeerID:       e.PeerID.String(),
			Name:         m.displayName(ctx, e.PeerID, types.TransportInternet),
			Address:      e.Addr,
			RTTMs:        rttMs(e),
			InternetOnly: internetOnly,
		})
	}
	return out
}

// NetworkStats 汇总网络统计
//
// Total 与 ConnectionTypes 按直连邻居的主传输统计；OnlineCount 为路由表中
// 可达的用户数；AverageRTTMs 只计入有测量值的邻居。
func (m *Mapper) NetworkStats() types.NetworkStats {
	stats := types.NetworkStats{
		ConnectionTypes: make(map[string]int),
		OnlineCount:     m.routes.OnlineCount(),
	}

	var sum float64
	measured := 0
	for _, peer := range m.neighbours.AllNeighbours() {
		entry, ok := m.neighbours.Best(peer)
		if !ok {
			continue
		}
		stats.Total++
		stats.ConnectionTypes[entry.Transport.String()]++
		if entry.RTTKnown {
			sum += rttMs(entry)
			measured++
		}
	}
	if measured > 0 {
		stats.AverageRTTMs = sum / float64(measured)
	}
	return stats
}
