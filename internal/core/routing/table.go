package routing

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-meshrouter/internal/core/metrics"
	"github.com/dep2p/go-meshrouter/internal/util/logger"
	pkgif "github.com/dep2p/go-meshrouter/pkg/interfaces"
	"github.com/dep2p/go-meshrouter/pkg/types"
)

var log = logger.Logger("core/routing")

// Directory 路由表读取的用户目录视图
type Directory interface {
	SnapshotAll() []types.UserRecord
}

// routeKey 路径键，同一用户下唯一
type routeKey struct {
	via       types.PeerID
	transport types.TransportModule
}

// Table 路由表
type Table struct {
	cfg  Config
	self types.PeerID

	mu     sync.RWMutex
	routes map[types.PeerID]map[routeKey]types.RouteEntry
	// applied 每条链路最近一次生效的路由信息时间戳
	applied map[routeKey]int64

	clock    clock.Clock
	metrics  *metrics.Recorder
	presence pkgif.Emitter
	dir      Directory
}

// Option 路由表选项
type Option func(*Table)

// WithClock 设置时钟
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

// WithPresenceEmitter 设置 EvtPresenceChanged 发射器
func WithPresenceEmitter(em pkgif.Emitter) Option {
	return func(t *Table) {
		t.presence = em
	}
}

// WithDirectory 设置用户目录，OnlineUsers / OfflineUsers 需要
func WithDirectory(d Directory) Option {
	return func(t *Table) {
		t.dir = d
	}
}

// WithSelf 设置本节点 ID，到自身的路径会被忽略
func WithSelf(self types.PeerID) Option {
	return func(t *Table) {
		t.self = self
	}
}

// New 创建路由表
func New(cfg Config, opts ...Option) *Table {
	t := &Table{
		cfg:     cfg.normalize(),
		routes:  make(map[types.PeerID]map[routeKey]types.RouteEntry),
		applied: make(map[routeKey]int64),
		clock:   clock.New(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// presenceChange 锁内收集、锁外发布的状态变化
type presenceChange struct {
	peer   types.PeerID
	online bool
}

// ============================================================================
//                              写操作
// ============================================================================

// AddDirect 添加或刷新一条直连路径
//
// 返回该用户是否因此由 Offline 变为 Online。
func (t *Table) AddDirect(peer types.PeerID, transport types.TransportModule, rtt time.Duration, at time.Time) (bool, error) {
	if peer.IsEmpty() {
		return false, ErrEmptyPeer
	}
	if !transport.IsValid() {
		return false, ErrInvalidTransport
	}
	if peer == t.self {
		return false, ErrSelfRoute
	}
	if at.IsZero() {
		at = t.clock.Now()
	}

	entry := types.RouteEntry{
		Via:       peer,
		Transport: transport,
		HopCount:  0,
		RTT:       rtt,
		Updated:   at,
	}

	t.mu.Lock()
	wasOnline := len(t.routes[peer]) > 0
	t.setLocked(peer, entry)
	n := len(t.routes)
	t.mu.Unlock()

	if !wasOnline {
		t.publish(n, []presenceChange{{peer: peer, online: true}})
	}
	return !wasOnline, nil
}

// RemoveVia 移除经由 (via, transport) 的所有路径，包括到 via 自身的直连路径
//
// 返回被移除的条目数。
func (t *Table) RemoveVia(via types.PeerID, transport types.TransportModule) int {
	key := routeKey{via: via, transport: transport}

	t.mu.Lock()
	delete(t.applied, key)
	removed := 0
	var changes []presenceChange
	for user, byKey := range t.routes {
		if _, ok := byKey[key]; !ok {
			continue
		}
		delete(byKey, key)
		removed++
		if len(byKey) == 0 {
			delete(t.routes, user)
			changes = append(changes, presenceChange{peer: user})
		}
	}
	n := len(t.routes)
	t.mu.Unlock()

	if removed > 0 {
		log.Debug("移除链路路径", "via", via.ShortString(), "transport", transport, "removed", removed)
	}
	t.publish(n, changes)
	return removed
}

// ApplyRoutingInfo 应用邻居 from 通过 transport 广播的路由信息
//
// 先删除之前经由 (from, transport) 学到的全部路径，再按广播内容重建：
// 跳数加一，RTT 加上链路 RTT。超过 MaxHops 的条目、到自身或到 from
// 的条目被忽略。返回写入的条目数。
//
// ts 为广播方的签名时间戳：同一链路上不新于已生效时间戳的广播返回
// ErrStaleRoutingInfo 且不修改路由表。ts <= 0 时不做顺序检查。
// 链路丢失（RemoveVia）后顺序重新开始。
func (t *Table) ApplyRoutingInfo(from types.PeerID, transport types.TransportModule, linkRTT time.Duration,
	entries []types.RoutingInfoEntry, ts int64, at time.Time) (int, error) {
	if from.IsEmpty() {
		return 0, ErrEmptyPeer
	}
	if !transport.IsValid() {
		return 0, ErrInvalidTransport
	}
	if at.IsZero() {
		at = t.clock.Now()
	}
	key := routeKey{via: from, transport: transport}

	t.mu.Lock()
	if ts > 0 {
		if last, ok := t.applied[key]; ok && ts <= last {
			t.mu.Unlock()
			return 0, ErrStaleRoutingInfo
		}
		t.applied[key] = ts
	}
	before := make(map[types.PeerID]bool)

	// 清除旧的学习路径
	for user, byKey := range t.routes {
		if user == from {
			continue
		}
		if _, ok := byKey[key]; ok {
			before[user] = true
			delete(byKey, key)
		}
	}

	written := 0
	for _, e := range entries {
		if e.User.IsEmpty() || e.User == t.self || e.User == from {
			continue
		}
		if e.HopCount >= t.cfg.MaxHops {
			continue
		}
		if _, seen := before[e.User]; !seen {
			before[e.User] = len(t.routes[e.User]) > 0
		}
		t.setLocked(e.User, types.RouteEntry{
			Via:       from,
			Transport: transport,
			HopCount:  e.HopCount + 1,
			RTT:       e.RTT + linkRTT,
			Updated:   at,
		})
		written++
	}

	var changes []presenceChange
	for user, wasOnline := range before {
		online := len(t.routes[user]) > 0
		if !online {
			delete(t.routes, user)
		}
		if online != wasOnline {
			changes = append(changes, presenceChange{peer: user, online: online})
		}
	}
	n := len(t.routes)
	t.mu.Unlock()

	t.publish(n, changes)
	return written, nil
}

// Prune 移除超过 LearnedTTL 未刷新的学习路径
//
// 直连路径只在链路丢失时移除，不受影响。返回被移除的条目数。
func (t *Table) Prune() int {
	if t.cfg.LearnedTTL <= 0 {
		return 0
	}
	cutoff := t.clock.Now().Add(-t.cfg.LearnedTTL)

	t.mu.Lock()
	removed := 0
	var changes []presenceChange
	for user, byKey := range t.routes {
		for key, e := range byKey {
			if e.HopCount > 0 && e.Updated.Before(cutoff) {
				delete(byKey, key)
				removed++
			}
		}
		if len(byKey) == 0 {
			delete(t.routes, user)
			changes = append(changes, presenceChange{peer: user})
		}
	}
	n := len(t.routes)
	t.mu.Unlock()

	t.publish(n, changes)
	return removed
}

// setLocked 写入一条路径，调用方持有写锁
func (t *Table) setLocked(user types.PeerID, e types.RouteEntry) {
	byKey, ok := t.routes[user]
	if !ok {
		byKey = make(map[routeKey]types.RouteEntry)
		t.routes[user] = byKey
	}
	byKey[routeKey{via: e.Via, transport: e.Transport}] = e
}

// publish 锁外发布状态变化并更新指标
func (t *Table) publish(online int, changes []presenceChange) {
	t.metrics.SetOnlineUsers(online)
	for _, c := range changes {
		t.metrics.ObservePresence(c.online)
		if t.presence != nil {
			_ = t.presence.Emit(types.EvtPresenceChanged{
				Q8ID:   types.ToQ8ID(c.peer),
				PeerID: c.peer,
				Online: c.online,
			})
		}
		log.Debug("在线状态变化", "peer", c.peer.ShortString(), "online", c.online)
	}
}

// ============================================================================
//                              查询
// ============================================================================

// sortedRoutes 返回按优劣排序的路径副本
func sortedRoutes(byKey map[routeKey]types.RouteEntry) []types.RouteEntry {
	out := make([]types.RouteEntry, 0, len(byKey))
	for _, e := range byKey {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Better(out[j]) })
	return out
}

// RouteToUser 返回到达用户的最佳路径
func (t *Table) RouteToUser(user types.PeerID) (types.RouteEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var best types.RouteEntry
	found := false
	for _, e := range t.routes[user] {
		if !found || e.Better(best) {
			best = e
			found = true
		}
	}
	return best, found
}

// Routes 返回到达用户的全部路径，最佳在前
func (t *Table) Routes(user types.PeerID) []types.RouteEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	byKey, ok := t.routes[user]
	if !ok {
		return nil
	}
	return sortedRoutes(byKey)
}

// IsOnline 检查用户是否至少有一条路径
func (t *Table) IsOnline(user types.PeerID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.routes[user]) > 0
}

// OnlineCount 返回在线用户数
func (t *Table) OnlineCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.routes)
}

// OnlineUsersInfo 返回所有在线用户的多路径视图，每个列表最佳在前
func (t *Table) OnlineUsersInfo() map[types.Q8ID][]types.RouteEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[types.Q8ID][]types.RouteEntry, len(t.routes))
	for user, byKey := range t.routes {
		out[types.ToQ8ID(user)] = sortedRoutes(byKey)
	}
	return out
}

// Snapshot 生成向邻居广播的路由信息
//
// 每个用户取最佳路径；经由 excludeVia 学到的路径不参与（水平分割），
// 到 excludeVia 自身的条目也不发送。结果按用户 ID 排序。
func (t *Table) Snapshot(excludeVia types.PeerID) []types.RoutingInfoEntry {
	t.mu.RLock()
	out := make([]types.RoutingInfoEntry, 0, len(t.routes))
	for user, byKey := range t.routes {
		if user == excludeVia {
			continue
		}
		var best types.RouteEntry
		found := false
		for _, e := range byKey {
			if e.Via == excludeVia {
				continue
			}
			if !found || e.Better(best) {
				best = e
				found = true
			}
		}
		if found {
			out = append(out, types.RoutingInfoEntry{User: user, HopCount: best.HopCount, RTT: best.RTT})
		}
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].User < out[j].User })
	return out
}

// ============================================================================
//                              用户划分
// ============================================================================

// OnlineUsers 返回在线用户摘要，按 Q8ID 排序
func (t *Table) OnlineUsers() []types.UserSummary {
	online, _ := t.Partition()
	return online
}

// OfflineUsers 返回离线用户摘要，按 Q8ID 排序
func (t *Table) OfflineUsers() []types.UserSummary {
	_, offline := t.Partition()
	return offline
}

// Partition 把用户划分为在线与离线两组
//
// 有路径但目录中尚无记录的用户以空记录计入在线组，
// 因此划分总是完整且不重叠。本节点自身不参与划分。
func (t *Table) Partition() (online, offline []types.UserSummary) {
	var records []types.UserRecord
	if t.dir != nil {
		records = t.dir.SnapshotAll()
	}

	t.mu.RLock()
	seen := make(map[types.PeerID]struct{}, len(records))
	for _, rec := range records {
		seen[rec.PeerID] = struct{}{}
		if rec.PeerID == t.self {
			continue
		}
		byKey := t.routes[rec.PeerID]
		s := summarize(rec, byKey)
		if s.Online {
			online = append(online, s)
		} else {
			offline = append(offline, s)
		}
	}
	for user, byKey := range t.routes {
		if _, ok := seen[user]; ok {
			continue
		}
		rec := types.UserRecord{Q8ID: types.ToQ8ID(user), PeerID: user}
		online = append(online, summarize(rec, byKey))
	}
	t.mu.RUnlock()

	sortSummaries(online)
	sortSummaries(offline)
	return online, offline
}

// Summary 返回单个用户的摘要
func (t *Table) Summary(rec types.UserRecord) types.UserSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return summarize(rec, t.routes[rec.PeerID])
}

func summarize(rec types.UserRecord, byKey map[routeKey]types.RouteEntry) types.UserSummary {
	s := types.UserSummary{
		Q8ID:        rec.Q8ID.String(),
		PeerID:      rec.PeerID.String(),
		Record:      rec,
		Online:      len(byKey) > 0,
		Connections: []types.RouteEntry{},
	}
	if len(byKey) > 0 {
		s.Connections = sortedRoutes(byKey)
	}
	return s
}

func sortSummaries(s []types.UserSummary) {
	sort.Slice(s, func(i, j int) bool { return s[i].Record.Q8ID.Less(s[j].Record.Q8ID) })
}
