package neighbour

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-meshrouter/internal/core/metrics"
	"github.com/dep2p/go-meshrouter/internal/util/logger"
	"github.com/dep2p/go-meshrouter/pkg/types"
)

var log = logger.Logger("core/neighbour")

// Table 邻居表
type Table struct {
	mu      sync.RWMutex
	entries map[types.PeerID]map[types.TransportModule]*types.NeighbourEntry

	clock   clock.Clock
	metrics *metrics.Recorder
}

// Option 邻居表选项
type Option func(*Table)

// WithClock 设置时钟（观察未携带时间时使用）
func WithClock(clk clock.Clock) Option {
	return func(t *Table) {
		if clk != nil {
			t.clock = clk
		}
	}
}

// WithMetrics 设置指标记录器
func WithMetrics(m *metrics.Recorder) Option {
	return func(t *Table) {
		t.metrics = m
	}
}

// New 创建邻居表
func New(opts ...Option) *Table {
	t := &Table{
		entries: make(map[types.PeerID]map[types.TransportModule]*types.NeighbourEntry),
		clock:   clock.New(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ============================================================================
//                              写操作
// ============================================================================

// Upsert 记录一次邻居观察
//
// 同一 (peer, transport) 以最近一次观察为准；时间早于已有 LastSeen 的
// 观察被忽略。观察未携带 RTT 时保留上一次的测量值。
// 返回该 (peer, transport) 是否为新出现的条目。
func (t *Table) Upsert(obs types.Observation) (bool, error) {
	if obs.PeerID.IsEmpty() {
		return false, ErrEmptyPeer
	}
	if !obs.Transport.IsValid() {
		return false, ErrInvalidTransport
	}
	if obs.Seen.IsZero() {
		obs.Seen = t.clock.Now()
	}

	t.mu.Lock()
	byTransport, ok := t.entries[obs.PeerID]
	if !ok {
		byTransport = make(map[types.TransportModule]*types.NeighbourEntry, 1)
		t.entries[obs.PeerID] = byTransport
	}

	entry, exists := byTransport[obs.Transport]
	if !exists {
		entry = &types.NeighbourEntry{
			PeerID:    obs.PeerID,
			Transport: obs.Transport,
		}
		byTransport[obs.Transport] = entry
	} else if obs.Seen.Before(entry.LastSeen) {
		t.mu.Unlock()
		return false, nil
	}

	entry.LastSeen = obs.Seen
	if obs.RTTKnown {
		entry.RTT = obs.RTT
		entry.RTTKnown = true
	}
	if obs.Addr != "" {
		entry.Addr = obs.Addr
	}
	count := t.countLocked(obs.Transport)
	t.mu.Unlock()

	if !exists {
		t.metrics.SetNeighbours(obs.Transport, count)
		log.Debug("邻居出现",
			"peer", obs.PeerID.ShortString(),
			"transport", obs.Transport.String())
	}
	return !exists, nil
}

// Remove 删除 (peer, transport) 条目，返回是否存在
func (t *Table) Remove(peer types.PeerID, transport types.TransportModule) bool {
	t.mu.Lock()
	byTransport, ok := t.entries[peer]
	if !ok {
		t.mu.Unlock()
		return false
	}
	if _, ok := byTransport[transport]; !ok {
		t.mu.Unlock()
		return false
	}
	delete(byTransport, transport)
	if len(byTransport) == 0 {
		delete(t.entries, peer)
	}
	count := t.countLocked(transport)
	t.mu.Unlock()

	t.metrics.SetNeighbours(transport, count)
	log.Debug("邻居丢失",
		"peer", peer.ShortString(),
		"transport", transport.String())
	return true
}

// countLocked 统计某传输的邻居数，调用方持有锁
func (t *Table) countLocked(transport types.TransportModule) int {
	n := 0
	for _, byTransport := range t.entries {
		if _, ok := byTransport[transport]; ok {
			n++
		}
	}
	return n
}

// ============================================================================
//                              查询
// ============================================================================

// IsNeighbour 返回节点当前直连所用的传输
//
// 多个传输同时直连时按 types.TransportPriority 取第一个；
// 不是直连邻居时返回 TransportNone。
func (t *Table) IsNeighbour(peer types.PeerID) types.TransportModule {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return bestTransport(t.entries[peer])
}

func bestTransport(byTransport map[types.TransportModule]*types.NeighbourEntry) types.TransportModule {
	for _, tr := range types.TransportPriority {
		if _, ok := byTransport[tr]; ok {
			return tr
		}
	}
	return types.TransportNone
}

// RTT 返回节点在指定传输上的 RTT，从未测量时返回 false
func (t *Table) RTT(peer types.PeerID, transport types.TransportModule) (time.Duration, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.entries[peer][transport]
	if !ok || !entry.RTTKnown {
		return 0, false
	}
	return entry.RTT, true
}

// Entry 返回 (peer, transport) 条目的副本
func (t *Table) Entry(peer types.PeerID, transport types.TransportModule) (types.NeighbourEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.entries[peer][transport]
	if !ok {
		return types.NeighbourEntry{}, false
	}
	return *entry, true
}

// Best 返回节点优先级最高的直连条目
func (t *Table) Best(peer types.PeerID) (types.NeighbourEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	byTransport := t.entries[peer]
	tr := bestTransport(byTransport)
	if tr == types.TransportNone {
		return types.NeighbourEntry{}, false
	}
	return *byTransport[tr], true
}

// AllNeighbours 返回所有传输上的邻居（去重，按字节序排序）
func (t *Table) AllNeighbours() []types.PeerID {
	t.mu.RLock()
	out := make([]types.PeerID, 0, len(t.entries))
	for peer := range t.entries {
		out = append(out, peer)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// InternetOnlyNodes 返回只通过 Internet 直连的邻居
func (t *Table) InternetOnlyNodes() []types.PeerID {
	t.mu.RLock()
	var out []types.PeerID
	for peer, byTransport := range t.entries {
		if _, ok := byTransport[types.TransportInternet]; ok && len(byTransport) == 1 {
			out = append(out, peer)
		}
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Entries 返回指定传输上的条目副本；TransportNone 返回全部
//
// 按 PeerID 排序，同一节点内按传输优先级排序。
func (t *Table) Entries(transport types.TransportModule) []types.NeighbourEntry {
	t.mu.RLock()
	var out []types.NeighbourEntry
	for _, byTransport := range t.entries {
		for tr, entry := range byTransport {
			if transport == types.TransportNone || tr == transport {
				out = append(out, *entry)
			}
		}
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].PeerID != out[j].PeerID {
			return out[i].PeerID < out[j].PeerID
		}
		return out[i].Transport.Rank() < out[j].Transport.Rank()
	})
	return out
}

// Count 返回不同邻居节点数
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
