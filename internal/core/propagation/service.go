package propagation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	arc "github.com/hashicorp/golang-lru/arc/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"lukechampine.com/blake3"

	"github.com/dep2p/go-meshrouter/internal/core/identity"
	"github.com/dep2p/go-meshrouter/internal/core/metrics"
	"github.com/dep2p/go-meshrouter/internal/core/neighbour"
	"github.com/dep2p/go-meshrouter/internal/core/routing"
	"github.com/dep2p/go-meshrouter/internal/core/userdir"
	"github.com/dep2p/go-meshrouter/internal/util/logger"
	pkgif "github.com/dep2p/go-meshrouter/pkg/interfaces"
	"github.com/dep2p/go-meshrouter/pkg/types"
)

var log = logger.Logger("core/propagation")

// Service 传播服务
type Service struct {
	cfg  Config
	id   *identity.Identity
	self types.PeerID

	dir        *userdir.Directory
	neighbours *neighbour.Table
	routes     *routing.Table

	sender  pkgif.Sender
	bus     pkgif.EventBus
	clock   clock.Clock
	metrics *metrics.Recorder

	queue   *sendQueue
	trigger chan struct{}

	dedupMu sync.Mutex
	dedup   *expirable.LRU[[32]byte, struct{}]

	replyMu sync.Mutex
	replies *arc.ARCCache[types.PeerID, time.Time]

	// latest 每个来源最近一条被接受的资料消息，新邻居出现时重放
	latest *lru.Cache[types.PeerID, signedInfo]

	// pending 已转发的资料请求：目标 -> 等待回复的上一跳
	pendingMu sync.Mutex
	pending   *expirable.LRU[types.PeerID, []types.PeerID]

	running int32
	ctx     context.Context
	cancel  context.CancelFunc
	subs    []pkgif.Subscription
	wg      sync.WaitGroup
}

// Option 服务选项
type Option func(*Service)

// WithSender 设置出站传输
func WithSender(s pkgif.Sender) Option {
	return func(svc *Service) {
		svc.sender = s
	}
}

// WithEventBus 设置事件总线，用于接收 EvtUserInfoRequested
func WithEventBus(bus pkgif.EventBus) Option {
	return func(svc *Service) {
		svc.bus = bus
	}
}

// WithClock 设置时钟
func WithClock(clk clock.Clock) Option {
	return func(svc *Service) {
		if clk != nil {
			svc.clock = clk
		}
	}
}

// WithMetrics 设置指标记录器
func WithMetrics(m *metrics.Recorder) Option {
	return func(svc *Service) {
		svc.metrics = m
	}
}

// New 创建传播服务
func New(cfg Config, id *identity.Identity, dir *userdir.Directory, neighbours *neighbour.Table,
	routes *routing.Table, opts ...Option) (*Service, error) {
	cfg = cfg.normalize()

	replies, err := arc.NewARC[types.PeerID, time.Time](cfg.ReplyCacheSize)
	if err != nil {
		return nil, err
	}
	latest, err := lru.New[types.PeerID, signedInfo](cfg.SyncCacheSize)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:        cfg,
		id:         id,
		self:       id.ID(),
		dir:        dir,
		neighbours: neighbours,
		routes:     routes,
		clock:      clock.New(),
		queue:      newSendQueue(cfg.QueueSize),
		trigger:    make(chan struct{}, 1),
		dedup:      expirable.NewLRU[[32]byte, struct{}](cfg.DedupCacheSize, nil, cfg.DedupTTL),
		replies:    replies,
		latest:     latest,
		pending:    expirable.NewLRU[types.PeerID, []types.PeerID](cfg.ReplyCacheSize, nil, cfg.DedupTTL),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 启动广播循环与发送队列
func (s *Service) Start(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return nil
	}

	// fx OnStart 的 ctx 在返回后被取消，后台循环使用独立 ctx
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if s.bus != nil {
		requests, err := s.bus.Subscribe(new(types.EvtUserInfoRequested))
		if err != nil {
			s.cancel()
			atomic.StoreInt32(&s.running, 0)
			return err
		}
		changes, err := s.bus.Subscribe(new(types.EvtNeighbourChanged))
		if err != nil {
			_ = requests.Close()
			s.cancel()
			atomic.StoreInt32(&s.running, 0)
			return err
		}
		s.subs = []pkgif.Subscription{requests, changes}
		s.wg.Add(1)
		go s.eventLoop(requests, changes)
	}

	if s.sender == nil {
		log.Warn("未配置出站传输，消息只入队不发送")
	}

	s.wg.Add(2)
	go s.drainLoop()
	go s.broadcastLoop()

	log.Info("传播服务已启动",
		"user_info_interval", s.cfg.UserInfoInterval,
		"routing_interval", s.cfg.RoutingInterval)
	return nil
}

// Stop 停止所有后台循环
func (s *Service) Stop(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return nil
	}

	s.cancel()
	for _, sub := range s.subs {
		_ = sub.Close()
	}
	s.subs = nil
	s.wg.Wait()

	log.Info("传播服务已停止")
	return nil
}

// Trigger 请求立即广播本地资料（本地资料变化时调用）
func (s *Service) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Service) broadcastLoop() {
	defer s.wg.Done()

	userTicker := s.clock.Ticker(s.cfg.UserInfoInterval)
	defer userTicker.Stop()
	routeTicker := s.clock.Ticker(s.cfg.RoutingInterval)
	defer routeTicker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-userTicker.C:
			s.broadcastUserInfo()
		case <-s.trigger:
			s.broadcastUserInfo()
		case <-routeTicker.C:
			s.broadcastRoutingInfo()
		}
	}
}

func (s *Service) drainLoop() {
	defer s.wg.Done()

	for {
		msg, ok := s.queue.pop(s.ctx)
		if !ok {
			return
		}
		s.metrics.SetQueueDepth(s.queue.len())
		s.send(msg)
	}
}

// eventLoop 处理资料请求与邻居变化事件
func (s *Service) eventLoop(requests, changes pkgif.Subscription) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-requests.Out():
			if !ok {
				return
			}
			req, ok := ev.(types.EvtUserInfoRequested)
			if !ok {
				continue
			}
			if err := s.RequestUserInfo(s.ctx, req.PeerID); err != nil {
				log.Debug("资料请求未发出", "peer", req.PeerID.ShortString(), "error", err)
			}
		case ev, ok := <-changes.Out():
			if !ok {
				return
			}
			evt, ok := ev.(types.EvtNeighbourChanged)
			if !ok || evt.Lost {
				continue
			}
			if n := s.SyncNeighbour(evt.PeerID, evt.Transport); n > 0 {
				log.Debug("已向新邻居同步资料", "peer", evt.PeerID.ShortString(), "messages", n)
			}
		}
	}
}

// ============================================================================
//                              发送
// ============================================================================

// send 交给传输层，ctx 带超时
func (s *Service) send(msg outbound) {
	if s.sender == nil {
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.SendTimeout)
	defer cancel()

	if err := s.sender.Send(ctx, msg.to, msg.transport, msg.data); err != nil {
		s.metrics.ObserveSendError(msg.transport)
		log.Debug("消息发送失败",
			"id", msg.id,
			"peer", msg.to.ShortString(),
			"module", msg.module,
			"error", err)
		return
	}
	s.metrics.ObserveSent(msg.module.String(), msg.transport, len(msg.data))
}

// enqueue 入队一条消息，队列满时丢弃
func (s *Service) enqueue(to types.PeerID, transport types.TransportModule, module MsgModule, data []byte) error {
	msg := outbound{
		id:        uuid.New(),
		to:        to,
		transport: transport,
		module:    module,
		data:      data,
	}
	if !s.queue.push(msg) {
		s.metrics.ObserveQueueDropped()
		log.Debug("发送队列已满，丢弃消息", "peer", to.ShortString(), "module", module)
		return ErrQueueFull
	}
	s.metrics.SetQueueDepth(s.queue.len())
	return nil
}

// selfUserInfo 构建本地资料消息，尚未设置资料时返回 false
//
// 时间戳使用记录的 Updated，重复广播对接收方是幂等的。
func (s *Service) selfUserInfo() ([]byte, bool) {
	rec, ok := s.dir.GetByPeer(s.self)
	if !ok || rec.Updated <= 0 {
		return nil, false
	}

	payload := MarshalUserInfo(types.Profile{
		Name:       rec.Name,
		ProfilePic: rec.ProfilePic,
		About:      rec.About,
		RegNo:      rec.RegNo,
		College:    rec.College,
	}.ToUpdate(s.self, rec.Updated))

	return Seal(s.id, Content{
		NodeID:    s.self,
		Module:    ModuleUserInfo,
		Payload:   payload,
		Timestamp: rec.Updated,
	}), true
}

// broadcastUserInfo 向每个当前邻居发送本地资料
func (s *Service) broadcastUserInfo() int {
	raw, ok := s.selfUserInfo()
	if !ok {
		return 0
	}

	sent := 0
	for _, peer := range s.neighbours.AllNeighbours() {
		tr := s.neighbours.IsNeighbour(peer)
		if tr == types.TransportNone {
			continue
		}
		if s.enqueue(peer, tr, ModuleUserInfo, raw) == nil {
			sent++
		}
	}
	return sent
}

// broadcastRoutingInfo 向每个当前邻居发送路由信息（水平分割）
func (s *Service) broadcastRoutingInfo() int {
	if n := s.routes.Prune(); n > 0 {
		log.Debug("清理过期学习路径", "removed", n)
	}

	now := s.clock.Now().UnixMilli()
	sent := 0
	for _, peer := range s.neighbours.AllNeighbours() {
		tr := s.neighbours.IsNeighbour(peer)
		if tr == types.TransportNone {
			continue
		}
		raw := Seal(s.id, Content{
			NodeID:    s.self,
			Module:    ModuleRoutingInfo,
			Payload:   MarshalRoutingInfo(s.routes.Snapshot(peer)),
			Timestamp: now,
		})
		if s.enqueue(peer, tr, ModuleRoutingInfo, raw) == nil {
			sent++
		}
	}
	return sent
}

// RequestUserInfo 向网络请求某用户的资料
//
// 请求发往目标本身（直连时）或到目标的最佳下一跳。
func (s *Service) RequestUserInfo(_ context.Context, target types.PeerID) error {
	if target.IsEmpty() || target == s.self {
		return nil
	}
	to, tr, ok := s.nextHop(target, types.EmptyPeerID)
	if !ok {
		return ErrNoRoute
	}

	raw := Seal(s.id, Content{
		NodeID:    s.self,
		Module:    ModuleUserInfoRequest,
		Payload:   MarshalUserInfoRequest(target),
		Timestamp: s.clock.Now().UnixMilli(),
	})
	return s.enqueue(to, tr, ModuleUserInfoRequest, raw)
}

// nextHop 选择到目标的下一跳，跳过 exclude
func (s *Service) nextHop(target, exclude types.PeerID) (types.PeerID, types.TransportModule, bool) {
	if target != exclude {
		if tr := s.neighbours.IsNeighbour(target); tr != types.TransportNone {
			return target, tr, true
		}
	}
	for _, r := range s.routes.Routes(target) {
		if r.Via == exclude {
			continue
		}
		return r.Via, r.Transport, true
	}
	return types.EmptyPeerID, types.TransportNone, false
}

// forward 把原始消息转发给除 except 外的所有邻居
func (s *Service) forward(raw []byte, module MsgModule, except ...types.PeerID) int {
	sent := 0
next:
	for _, peer := range s.neighbours.AllNeighbours() {
		for _, e := range except {
			if peer == e {
				continue next
			}
		}
		tr := s.neighbours.IsNeighbour(peer)
		if tr == types.TransportNone {
			continue
		}
		if s.enqueue(peer, tr, module, raw) == nil {
			sent++
		}
	}
	return sent
}

// SyncNeighbour 向新出现的邻居发送本地资料以及缓存的各来源最新资料
//
// 中继只在资料变化时转发，晚加入的邻居靠这里补齐已有资料。
func (s *Service) SyncNeighbour(peer types.PeerID, transport types.TransportModule) int {
	if !transport.IsValid() {
		return 0
	}

	sent := 0
	if raw, ok := s.selfUserInfo(); ok {
		if s.enqueue(peer, transport, ModuleUserInfo, raw) == nil {
			sent++
		}
	}
	for _, origin := range s.latest.Keys() {
		if origin == peer {
			continue
		}
		info, ok := s.latest.Peek(origin)
		if !ok {
			continue
		}
		if s.enqueue(peer, transport, ModuleUserInfo, info.raw) == nil {
			sent++
		}
	}
	return sent
}

// ============================================================================
//                              接收
// ============================================================================

// Handle 处理从邻居 from 收到的一条消息
//
// 解码、验签或去重失败时返回错误且不修改任何存储。
// 消息指纹只在处理成功后记录，被拒绝的消息稍后仍可重新处理。
func (s *Service) Handle(_ context.Context, raw []byte, from types.PeerID) error {
	linkTr := s.neighbours.IsNeighbour(from)

	c, err := Open(raw)
	if err != nil {
		s.metrics.ObserveDecodeError(decodeReason(err))
		log.Debug("丢弃无法解码的消息", "from", from.ShortString(), "error", err)
		return err
	}
	s.metrics.ObserveReceived(c.Module.String(), linkTr, len(raw))

	fp := blake3.Sum256(raw)
	if s.seen(fp) {
		s.metrics.ObserveDuplicate()
		if c.Module == ModuleUserInfo {
			s.answerPending(c.NodeID, s.newestInfo(c.NodeID, c.Timestamp, raw), from)
		}
		return ErrDuplicate
	}
	if c.NodeID == s.self {
		s.markSeen(fp)
		return nil
	}

	switch c.Module {
	case ModuleUserInfo:
		err = s.handleUserInfo(c, raw, from)
	case ModuleRoutingInfo:
		err = s.handleRoutingInfo(c, from, linkTr)
	case ModuleUserInfoRequest:
		err = s.handleUserInfoRequest(c, raw, from)
	}
	if err != nil {
		if errors.Is(err, types.ErrDecode) {
			s.metrics.ObserveDecodeError(decodeReason(err))
		}
		return err
	}
	s.markSeen(fp)
	return nil
}

// seen 检查消息指纹是否已处理过
func (s *Service) seen(fp [32]byte) bool {
	s.dedupMu.Lock()
	defer s.dedupMu.Unlock()
	return s.dedup.Contains(fp)
}

// markSeen 记录已处理的消息指纹
func (s *Service) markSeen(fp [32]byte) {
	s.dedupMu.Lock()
	s.dedup.Add(fp, struct{}{})
	s.dedupMu.Unlock()
}

func (s *Service) handleUserInfo(c Content, raw []byte, from types.PeerID) error {
	u, err := UnmarshalUserInfo(c.Payload)
	if err != nil {
		return err
	}
	u.PeerID = c.NodeID
	u.Timestamp = c.Timestamp

	if !s.dir.Upsert(u) {
		// 目录已有同样新的资料：不再泛洪，但仍可用于应答等待中的请求
		if rec, ok := s.dir.GetByPeer(c.NodeID); ok && rec.Updated <= c.Timestamp {
			s.remember(c.NodeID, c.Timestamp, raw)
		}
		s.answerPending(c.NodeID, s.newestInfo(c.NodeID, c.Timestamp, raw), from)
		return nil
	}
	s.remember(c.NodeID, c.Timestamp, raw)
	s.takePending(c.NodeID)
	// 资料有变化才继续泛洪，重复广播在这里终止
	s.forward(raw, ModuleUserInfo, from, c.NodeID)
	return nil
}

// remember 保存来源的最新资料消息，较旧的消息不覆盖
func (s *Service) remember(origin types.PeerID, ts int64, raw []byte) {
	if prev, ok := s.latest.Peek(origin); ok && prev.ts > ts {
		return
	}
	buf := make([]byte, len(raw))
	copy(buf, raw)
	s.latest.Add(origin, signedInfo{ts: ts, raw: buf})
}

// newestInfo 返回缓存中比 raw 更新的同源资料消息，没有时返回 raw
func (s *Service) newestInfo(origin types.PeerID, ts int64, raw []byte) []byte {
	if info, ok := s.latest.Peek(origin); ok && info.ts > ts {
		return info.raw
	}
	return raw
}

// signedInfo 一条已验签的资料消息
type signedInfo struct {
	ts  int64
	raw []byte
}

func (s *Service) handleRoutingInfo(c Content, from types.PeerID, linkTr types.TransportModule) error {
	if c.NodeID != from || linkTr == types.TransportNone {
		return ErrNotNeighbour
	}
	entries, err := UnmarshalRoutingInfo(c.Payload)
	if err != nil {
		return err
	}

	linkRTT, _ := s.neighbours.RTT(from, linkTr)
	for _, e := range entries {
		if e.User != s.self {
			s.dir.Ensure(e.User)
		}
	}
	_, err = s.routes.ApplyRoutingInfo(from, linkTr, linkRTT, entries, c.Timestamp, s.clock.Now())
	return err
}

func (s *Service) handleUserInfoRequest(c Content, raw []byte, from types.PeerID) error {
	target, err := UnmarshalUserInfoRequest(c.Payload)
	if err != nil {
		return err
	}

	if target != s.self {
		return s.relayUserInfoRequest(target, raw, from)
	}

	if !s.allowReply(c.NodeID) {
		return nil
	}
	reply, ok := s.selfUserInfo()
	if !ok {
		return nil
	}
	tr := s.neighbours.IsNeighbour(from)
	if tr == types.TransportNone {
		return ErrNoRoute
	}
	return s.enqueue(from, tr, ModuleUserInfo, reply)
}

// relayUserInfoRequest 处理发往其他节点的资料请求
//
// 已缓存目标的签名资料时直接回复上一跳；否则把请求转发给到目标的
// 下一跳，并记下上一跳，目标的回复经过本节点时再交给它。
func (s *Service) relayUserInfoRequest(target types.PeerID, raw []byte, from types.PeerID) error {
	if info, ok := s.latest.Peek(target); ok && target != from {
		tr := s.neighbours.IsNeighbour(from)
		if tr == types.TransportNone {
			return ErrNoRoute
		}
		return s.enqueue(from, tr, ModuleUserInfo, info.raw)
	}

	to, tr, ok := s.nextHop(target, from)
	if !ok {
		return ErrNoRoute
	}
	if err := s.enqueue(to, tr, ModuleUserInfoRequest, raw); err != nil {
		return err
	}
	s.addPending(target, from)
	return nil
}

// addPending 记录等待 target 资料的上一跳
func (s *Service) addPending(target, requester types.PeerID) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	waiting, _ := s.pending.Get(target)
	for _, p := range waiting {
		if p == requester {
			return
		}
	}
	s.pending.Add(target, append(waiting, requester))
}

// takePending 取出并清除等待 origin 资料的上一跳
func (s *Service) takePending(origin types.PeerID) []types.PeerID {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	waiting, ok := s.pending.Peek(origin)
	if !ok {
		return nil
	}
	s.pending.Remove(origin)
	return waiting
}

// answerPending 把 origin 的资料消息交给等待它的上一跳，返回发送条数
func (s *Service) answerPending(origin types.PeerID, raw []byte, from types.PeerID) int {
	sent := 0
	for _, peer := range s.takePending(origin) {
		if peer == from {
			continue
		}
		tr := s.neighbours.IsNeighbour(peer)
		if tr == types.TransportNone {
			continue
		}
		if s.enqueue(peer, tr, ModuleUserInfo, raw) == nil {
			sent++
		}
	}
	if sent > 0 {
		log.Debug("已回复等待中的资料请求", "origin", origin.ShortString(), "peers", sent)
	}
	return sent
}

// allowReply 每个请求方在冷却窗口内最多回复一次
func (s *Service) allowReply(requester types.PeerID) bool {
	now := s.clock.Now()

	s.replyMu.Lock()
	defer s.replyMu.Unlock()
	if last, ok := s.replies.Get(requester); ok && now.Sub(last) < s.cfg.ReplyCooldown {
		return false
	}
	s.replies.Add(requester, now)
	return true
}

func decodeReason(err error) string {
	switch {
	case errors.Is(err, ErrBadSignature):
		return "signature"
	case errors.Is(err, ErrUnknownModule):
		return "module"
	default:
		return "malformed"
	}
}
