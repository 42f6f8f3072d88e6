package router

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-meshrouter/internal/core/neighbour"
	"github.com/dep2p/go-meshrouter/internal/core/routing"
	"github.com/dep2p/go-meshrouter/internal/core/userdir"
	"github.com/dep2p/go-meshrouter/internal/util/logger"
	pkgif "github.com/dep2p/go-meshrouter/pkg/interfaces"
	"github.com/dep2p/go-meshrouter/pkg/types"
)

var log = logger.Logger("core/router")

// Handler 入站消息处理器
type Handler interface {
	Handle(ctx context.Context, raw []byte, from types.PeerID) error
}

// Service 入站事件协调器
type Service struct {
	// linkMu 串行化邻居出现与丢失，邻居表与直连路径的更新整体可见
	linkMu sync.Mutex

	neighbours *neighbour.Table
	dir        *userdir.Directory
	routes     *routing.Table
	handler    Handler
	changed    pkgif.Emitter
	clock      clock.Clock
}

// Option 选项
type Option func(*Service)

// WithHandler 设置入站消息处理器
func WithHandler(h Handler) Option {
	return func(s *Service) {
		s.handler = h
	}
}

// WithEmitter 设置 EvtNeighbourChanged 发射器
func WithEmitter(em pkgif.Emitter) Option {
	return func(s *Service) {
		s.changed = em
	}
}

// WithClock 设置时钟
func WithClock(clk clock.Clock) Option {
	return func(s *Service) {
		if clk != nil {
			s.clock = clk
		}
	}
}

// New 创建协调器
func New(neighbours *neighbour.Table, dir *userdir.Directory, routes *routing.Table, opts ...Option) *Service {
	s := &Service{
		neighbours: neighbours,
		dir:        dir,
		routes:     routes,
		clock:      clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NeighbourSeen 处理一次邻居观察
//
// 返回该 (peer, transport) 是否为新出现的邻居。
func (s *Service) NeighbourSeen(obs types.Observation) (bool, error) {
	if obs.Seen.IsZero() {
		obs.Seen = s.clock.Now()
	}

	isNew, err := s.observe(obs)
	if err != nil {
		return false, err
	}

	if isNew {
		log.Info("邻居出现", "peer", obs.PeerID.ShortString(), "transport", obs.Transport)
		s.emit(types.EvtNeighbourChanged{PeerID: obs.PeerID, Transport: obs.Transport})
	}
	return isNew, nil
}

// observe 在 linkMu 下写入邻居条目与对应的直连路径
func (s *Service) observe(obs types.Observation) (bool, error) {
	s.linkMu.Lock()
	defer s.linkMu.Unlock()

	isNew, err := s.neighbours.Upsert(obs)
	if err != nil {
		return false, err
	}
	s.dir.Ensure(obs.PeerID)

	// 观察可能不带 RTT，以邻居表合并后的值为准
	rtt := obs.RTT
	if entry, ok := s.neighbours.Entry(obs.PeerID, obs.Transport); ok {
		rtt = entry.RTT
	}
	if _, err := s.routes.AddDirect(obs.PeerID, obs.Transport, rtt, obs.Seen); err != nil {
		log.Debug("直连路径未写入", "peer", obs.PeerID.ShortString(), "error", err)
	}
	return isNew, nil
}

// NeighbourLost 处理邻居丢失
//
// 移除邻居条目以及经由该链路的所有路径，返回邻居条目是否存在。
func (s *Service) NeighbourLost(peer types.PeerID, transport types.TransportModule) bool {
	s.linkMu.Lock()
	removed := s.neighbours.Remove(peer, transport)
	n := s.routes.RemoveVia(peer, transport)
	s.linkMu.Unlock()

	if removed {
		log.Info("邻居丢失", "peer", peer.ShortString(), "transport", transport, "routes", n)
		s.emit(types.EvtNeighbourChanged{PeerID: peer, Transport: transport, Lost: true})
	}
	return removed
}

// UserUpdateReceived 把收到的原始消息交给入站处理器
func (s *Service) UserUpdateReceived(ctx context.Context, raw []byte, from types.PeerID) error {
	if s.handler == nil {
		return ErrNoHandler
	}
	return s.handler.Handle(ctx, raw, from)
}

func (s *Service) emit(evt types.EvtNeighbourChanged) {
	if s.changed == nil {
		return
	}
	if err := s.changed.Emit(evt); err != nil {
		log.Debug("事件发布失败", "error", err)
	}
}
