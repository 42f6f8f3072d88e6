package meshrouter

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-meshrouter/internal/core/identity"
	"github.com/dep2p/go-meshrouter/internal/core/metrics"
	"github.com/dep2p/go-meshrouter/internal/core/neighbour"
	"github.com/dep2p/go-meshrouter/internal/core/netmap"
	"github.com/dep2p/go-meshrouter/internal/core/propagation"
	"github.com/dep2p/go-meshrouter/internal/core/router"
	"github.com/dep2p/go-meshrouter/internal/core/routing"
	"github.com/dep2p/go-meshrouter/internal/core/userdir"
	"github.com/dep2p/go-meshrouter/internal/util/logger"
	pkgif "github.com/dep2p/go-meshrouter/pkg/interfaces"
	"github.com/dep2p/go-meshrouter/pkg/types"
)

var log = logger.Logger("meshrouter")

// 节点状态
const (
	stateIdle int32 = iota
	stateRunning
	stateClosed
)

const (
	// startTimeout 启动 Fx 应用的超时
	startTimeout = 30 * time.Second

	// stopTimeout 停止 Fx 应用的超时
	stopTimeout = 15 * time.Second
)

// Node meshrouter 节点
//
// 持有三个存储（用户目录、邻居表、路由表）以及传播服务，
// 由 Fx 组装。所有方法并发安全。
type Node struct {
	// ────────────────────────────────────────────────────────────────────────
	// 配置和状态
	// ────────────────────────────────────────────────────────────────────────

	opts *options
	app  *fx.App

	// mu 串行化 Start / Stop；入站调用只读 state，不等待生命周期操作
	mu    sync.Mutex
	state atomic.Int32

	// profileMu 串行化本地资料写入，保证时间戳单调
	profileMu sync.Mutex

	// ────────────────────────────────────────────────────────────────────────
	// 核心组件（由 Fx 注入）
	// ────────────────────────────────────────────────────────────────────────

	id          *identity.Identity
	bus         pkgif.EventBus
	dir         *userdir.Directory
	neighbours  *neighbour.Table
	routes      *routing.Table
	propagation *propagation.Service
	router      *router.Service
	mapper      *netmap.Mapper
	bandwidth   *metrics.BandwidthCounter
	clock       clock.Clock
}

// New 创建节点（不启动）
func New(opts ...Option) (*Node, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	if err := o.config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	node := &Node{
		opts:  o,
		clock: clock.New(),
	}
	node.app = buildFxApp(o, node)
	if err := node.app.Err(); err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	return node, nil
}

// Start 快捷启动函数，等价于 New() + Start()
func Start(ctx context.Context, opts ...Option) (*Node, error) {
	node, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := node.Start(ctx); err != nil {
		return nil, err
	}
	return node, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

// Start 启动节点
//
// 启动 Fx 应用后，若配置了本地资料则写入用户目录并立即广播。
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state.Load() {
	case stateClosed:
		return ErrNodeClosed
	case stateRunning:
		return ErrAlreadyStarted
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()

	if err := n.app.Start(startCtx); err != nil {
		log.Error("节点启动失败", "error", err)
		return fmt.Errorf("start failed: %w", err)
	}
	n.state.Store(stateRunning)

	n.dir.Ensure(n.id.ID())
	if p := n.opts.config.Profile; !p.IsEmpty() {
		n.applyProfile(types.Profile{
			Name:       p.Name,
			ProfilePic: p.ProfilePic,
			About:      p.About,
			RegNo:      p.RegNo,
			College:    p.College,
		})
	}

	log.Info("节点已启动",
		"peer", n.id.ID().ShortString(),
		"q8id", types.ToQ8ID(n.id.ID()).String(),
		"version", Version)
	return nil
}

// Stop 停止节点，之后不能再次启动
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state.Swap(stateClosed) != stateRunning {
		return nil
	}

	var errs error
	if err := n.app.Stop(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("stop fx app: %w", err))
	}
	log.Info("节点已停止")
	return errs
}

// Close 使用默认超时停止节点
func (n *Node) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return n.Stop(ctx)
}

// IsStarted 节点是否在运行
func (n *Node) IsStarted() bool {
	return n.state.Load() == stateRunning
}

// ready 返回存储是否可用
func (n *Node) ready() error {
	switch n.state.Load() {
	case stateRunning:
		return nil
	case stateClosed:
		return ErrNodeClosed
	default:
		return ErrNotStarted
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              身份
// ════════════════════════════════════════════════════════════════════════════

// ID 返回本节点 PeerID
func (n *Node) ID() types.PeerID {
	return n.id.ID()
}

// Q8ID 返回本节点 Q8ID
func (n *Node) Q8ID() types.Q8ID {
	return types.ToQ8ID(n.id.ID())
}

// ════════════════════════════════════════════════════════════════════════════
//                              入站（由传输模块调用）
// ════════════════════════════════════════════════════════════════════════════

// NotifyNeighbourSeen 报告一次邻居观察
//
// rttMicros <= 0 表示本次没有测量 RTT；ts 为零值时使用当前时间。
// 返回该 (peer, transport) 是否为新邻居。
func (n *Node) NotifyNeighbourSeen(peer types.PeerID, transport types.TransportModule, rttMicros int64, ts time.Time) (bool, error) {
	if err := n.ready(); err != nil {
		return false, err
	}
	obs := types.Observation{
		PeerID:    peer,
		Transport: transport,
		Seen:      ts,
	}
	if rttMicros > 0 {
		obs.RTT = time.Duration(rttMicros) * time.Microsecond
		obs.RTTKnown = true
	}
	return n.router.NeighbourSeen(obs)
}

// NotifyNeighbourLost 报告邻居在某个传输上丢失
func (n *Node) NotifyNeighbourLost(peer types.PeerID, transport types.TransportModule) (bool, error) {
	if err := n.ready(); err != nil {
		return false, err
	}
	return n.router.NeighbourLost(peer, transport), nil
}

// NotifyUserUpdateReceived 处理从邻居收到的一帧消息
//
// 解码或验签失败返回包装 types.ErrDecode 的错误，不修改任何存储。
func (n *Node) NotifyUserUpdateReceived(ctx context.Context, raw []byte, from types.PeerID) error {
	if err := n.ready(); err != nil {
		return err
	}
	return n.router.UserUpdateReceived(ctx, raw, from)
}

// ════════════════════════════════════════════════════════════════════════════
//                              查询（UI）
// ════════════════════════════════════════════════════════════════════════════

// LookupUser 按 Q8ID 查询用户摘要
func (n *Node) LookupUser(q types.Q8ID) (types.UserSummary, error) {
	if err := n.ready(); err != nil {
		return types.UserSummary{}, err
	}
	s, ok := n.mapper.LookupUser(q)
	if !ok {
		return types.UserSummary{}, ErrUserNotFound
	}
	return s, nil
}

// ListAllNeighbours 列出所有直连邻居
//
// 没有名字的邻居使用占位名，并触发一次（带冷却的）资料请求。
func (n *Node) ListAllNeighbours(ctx context.Context) ([]types.NeighbourSummary, error) {
	if err := n.ready(); err != nil {
		return nil, err
	}
	return n.mapper.ListAllNeighbours(ctx), nil
}

// ListInternetNeighbours 列出通过 Internet 直连的邻居
func (n *Node) ListInternetNeighbours(ctx context.Context) ([]types.InternetNeighbourSummary, error) {
	if err := n.ready(); err != nil {
		return nil, err
	}
	return n.mapper.ListInternetNeighbours(ctx), nil
}

// NetworkStats 返回网络统计
func (n *Node) NetworkStats() (types.NetworkStats, error) {
	if err := n.ready(); err != nil {
		return types.NetworkStats{}, err
	}
	return n.mapper.NetworkStats(), nil
}

// PeerIDToQ8ID 把 base58 PeerID 转换为 Q8ID 字符串
func (n *Node) PeerIDToQ8ID(peer string) (string, error) {
	if err := n.ready(); err != nil {
		return "", err
	}
	q, ok := n.mapper.PeerIDToQ8ID(peer)
	if !ok {
		return "", types.ErrInvalidIdentity
	}
	return q, nil
}

// Q8IDToPeerID 把 Q8ID 字符串转换为 base58 PeerID（仅限已知用户）
func (n *Node) Q8IDToPeerID(q string) (string, error) {
	if err := n.ready(); err != nil {
		return "", err
	}
	p, ok := n.mapper.Q8IDToPeerID(q)
	if !ok {
		return "", ErrUserNotFound
	}
	return p, nil
}

// OnlineUsers 返回当前可达的用户
func (n *Node) OnlineUsers() ([]types.UserSummary, error) {
	if err := n.ready(); err != nil {
		return nil, err
	}
	return n.routes.OnlineUsers(), nil
}

// OfflineUsers 返回已知但当前不可达的用户
func (n *Node) OfflineUsers() ([]types.UserSummary, error) {
	if err := n.ready(); err != nil {
		return nil, err
	}
	return n.routes.OfflineUsers(), nil
}

// RouteToUser 返回到达用户的最佳路径
func (n *Node) RouteToUser(q types.Q8ID) (types.RouteEntry, error) {
	if err := n.ready(); err != nil {
		return types.RouteEntry{}, err
	}
	rec, ok := n.dir.Get(q)
	if !ok {
		return types.RouteEntry{}, ErrUserNotFound
	}
	route, ok := n.routes.RouteToUser(rec.PeerID)
	if !ok {
		return types.RouteEntry{}, ErrNoRoute
	}
	return route, nil
}

// BandwidthStats 返回出站传输的累计流量
func (n *Node) BandwidthStats() metrics.Stats {
	return n.bandwidth.Totals()
}

// BandwidthByTransport 返回各传输的累计流量，键为传输名
func (n *Node) BandwidthByTransport() map[string]metrics.Stats {
	return n.bandwidth.ByTransport()
}

// ════════════════════════════════════════════════════════════════════════════
//                              本地写操作
// ════════════════════════════════════════════════════════════════════════════

// UpdateProfile 更新本地用户资料并立即广播
func (n *Node) UpdateProfile(p types.Profile) error {
	if err := n.ready(); err != nil {
		return err
	}
	n.applyProfile(p)
	return nil
}

// applyProfile 写入本地资料
//
// 时间戳取当前毫秒与上一次资料时间戳 +1 的较大者，同一毫秒内的
// 连续更新也严格更新，不会被合并规则丢弃。
func (n *Node) applyProfile(p types.Profile) {
	n.profileMu.Lock()
	defer n.profileMu.Unlock()

	ts := n.clock.Now().UnixMilli()
	if rec, ok := n.dir.GetByPeer(n.id.ID()); ok {
		ts = max(ts, rec.Updated+1)
	}
	if n.dir.Upsert(p.ToUpdate(n.id.ID(), ts)) {
		n.propagation.Trigger()
		log.Debug("本地资料已更新", "name", p.Name)
	}
}

// SetVerified 设置用户的本地认证标记
func (n *Node) SetVerified(q types.Q8ID, verified bool) error {
	if err := n.ready(); err != nil {
		return err
	}
	if !n.dir.SetVerified(q, verified) {
		return ErrUserNotFound
	}
	return nil
}

// SetBlocked 设置用户的本地屏蔽标记
func (n *Node) SetBlocked(q types.Q8ID, blocked bool) error {
	if err := n.ready(); err != nil {
		return err
	}
	if !n.dir.SetBlocked(q, blocked) {
		return ErrUserNotFound
	}
	return nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              事件
// ════════════════════════════════════════════════════════════════════════════

// Subscribe 订阅事件，eventType 为事件类型的指针
//
//	sub, err := node.Subscribe(new(types.EvtPresenceChanged))
func (n *Node) Subscribe(eventType any, opts ...pkgif.SubscriptionOpt) (pkgif.Subscription, error) {
	return n.bus.Subscribe(eventType, opts...)
}
