package propagation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-meshrouter/internal/core/eventbus"
	"github.com/dep2p/go-meshrouter/internal/core/identity"
	"github.com/dep2p/go-meshrouter/internal/core/neighbour"
	"github.com/dep2p/go-meshrouter/internal/core/routing"
	"github.com/dep2p/go-meshrouter/internal/core/userdir"
	pkgif "github.com/dep2p/go-meshrouter/pkg/interfaces"
	"github.com/dep2p/go-meshrouter/pkg/types"
)

type fixture struct {
	svc        *Service
	id         *identity.Identity
	clk        *clock.Mock
	dir        *userdir.Directory
	neighbours *neighbour.Table
	routes     *routing.Table
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	id, err := identity.Generate()
	require.NoError(t, err)

	clk := clock.NewMock()
	clk.Set(time.Unix(1_700_000_000, 0))

	f := &fixture{
		id:         id,
		clk:        clk,
		dir:        userdir.New(userdir.DefaultConfig(), userdir.WithClock(clk)),
		neighbours: neighbour.New(neighbour.WithClock(clk)),
	}
	f.routes = routing.New(routing.DefaultConfig(), routing.WithSelf(id.ID()), routing.WithClock(clk))
	f.svc, err = New(DefaultConfig(), id, f.dir, f.neighbours, f.routes,
		append([]Option{WithClock(clk)}, opts...)...)
	require.NoError(t, err)
	return f
}

func (f *fixture) addNeighbour(t *testing.T, peer types.PeerID, tr types.TransportModule, rtt time.Duration) {
	t.Helper()
	_, err := f.neighbours.Upsert(types.Observation{PeerID: peer, Transport: tr, RTT: rtt, RTTKnown: rtt > 0})
	require.NoError(t, err)
	_, err = f.routes.AddDirect(peer, tr, rtt, time.Time{})
	require.NoError(t, err)
}

func (f *fixture) setProfile(name string, ts int64) {
	f.dir.Upsert(types.Profile{Name: name}.ToUpdate(f.id.ID(), ts))
}

// drain 取出队列中的全部消息
func (f *fixture) drain() []outbound {
	var out []outbound
	for f.svc.queue.len() > 0 {
		msg, _ := f.svc.queue.pop(context.Background())
		out = append(out, msg)
	}
	return out
}

func newPeer(t *testing.T) *identity.Identity {
	t.Helper()
	id, err := identity.Generate()
	require.NoError(t, err)
	return id
}

func userInfoFrom(id *identity.Identity, name string, ts int64) []byte {
	return Seal(id, Content{
		NodeID:    id.ID(),
		Module:    ModuleUserInfo,
		Payload:   MarshalUserInfo(types.Profile{Name: name}.ToUpdate(id.ID(), ts)),
		Timestamp: ts,
	})
}

// TestService_BroadcastUserInfo 测试向每个邻居发送本地资料
func TestService_BroadcastUserInfo(t *testing.T) {
	f := newFixture(t)
	b, c := newPeer(t), newPeer(t)
	f.addNeighbour(t, b.ID(), types.TransportLan, time.Millisecond)
	f.addNeighbour(t, c.ID(), types.TransportBle, time.Millisecond)

	// 尚未设置资料时不广播
	assert.Equal(t, 0, f.svc.broadcastUserInfo())

	f.setProfile("alice", 100)
	assert.Equal(t, 2, f.svc.broadcastUserInfo())

	msgs := f.drain()
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		assert.Equal(t, ModuleUserInfo, m.module)
		c, err := Open(m.data)
		require.NoError(t, err)
		assert.Equal(t, f.id.ID(), c.NodeID)
		assert.Equal(t, int64(100), c.Timestamp)
	}
}

// TestService_BroadcastRoutingInfo 测试路由信息水平分割
func TestService_BroadcastRoutingInfo(t *testing.T) {
	f := newFixture(t)
	b, c := newPeer(t), newPeer(t)
	f.addNeighbour(t, b.ID(), types.TransportLan, time.Millisecond)
	f.addNeighbour(t, c.ID(), types.TransportLan, 2*time.Millisecond)

	assert.Equal(t, 2, f.svc.broadcastRoutingInfo())
	for _, m := range f.drain() {
		content, err := Open(m.data)
		require.NoError(t, err)
		entries, err := UnmarshalRoutingInfo(content.Payload)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.NotEqual(t, m.to, entries[0].User)
	}
}

// TestService_Handle_UserInfo 测试入站资料合并、去重与转发
func TestService_Handle_UserInfo(t *testing.T) {
	f := newFixture(t)
	b, c := newPeer(t), newPeer(t)
	f.addNeighbour(t, b.ID(), types.TransportLan, time.Millisecond)
	f.addNeighbour(t, c.ID(), types.TransportLan, time.Millisecond)
	ctx := context.Background()

	raw := userInfoFrom(b, "bob", 100)
	require.NoError(t, f.svc.Handle(ctx, raw, b.ID()))

	rec, ok := f.dir.GetByPeer(b.ID())
	require.True(t, ok)
	assert.Equal(t, "bob", rec.Name)

	msgs := f.drain()
	require.Len(t, msgs, 1)
	assert.Equal(t, c.ID(), msgs[0].to)

	assert.ErrorIs(t, f.svc.Handle(ctx, raw, c.ID()), ErrDuplicate)
	after, _ := f.dir.GetByPeer(b.ID())
	assert.Equal(t, rec, after)

	// 更旧的资料不改变目录，也不继续转发
	require.NoError(t, f.svc.Handle(ctx, userInfoFrom(b, "old", 50), b.ID()))
	rec, _ = f.dir.GetByPeer(b.ID())
	assert.Equal(t, "bob", rec.Name)
	assert.Empty(t, f.drain())
}

// TestService_Handle_Malformed 测试坏消息不修改存储
func TestService_Handle_Malformed(t *testing.T) {
	f := newFixture(t)
	b := newPeer(t)
	ctx := context.Background()

	err := f.svc.Handle(ctx, []byte{0x0a, 0xff}, b.ID())
	assert.ErrorIs(t, err, types.ErrDecode)

	// 声称来自 b 的消息却由另一个身份签名
	content := Content{
		NodeID:    b.ID(),
		Module:    ModuleUserInfo,
		Payload:   MarshalUserInfo(types.Profile{Name: "mallory"}.ToUpdate(b.ID(), 1)),
		Timestamp: 1,
	}.Marshal()
	forged := Envelope{Signature: newPeer(t).Sign(content), Content: content}.Marshal()
	assert.ErrorIs(t, f.svc.Handle(ctx, forged, b.ID()), ErrBadSignature)

	assert.Equal(t, 0, f.dir.Count())
}

// TestService_Handle_RoutingInfo 测试入站路由信息
func TestService_Handle_RoutingInfo(t *testing.T) {
	f := newFixture(t)
	b, c := newPeer(t), newPeer(t)
	ctx := context.Background()

	raw := Seal(b, Content{
		NodeID:    b.ID(),
		Module:    ModuleRoutingInfo,
		Payload:   MarshalRoutingInfo([]types.RoutingInfoEntry{{User: c.ID(), HopCount: 0, RTT: 5 * time.Millisecond}}),
		Timestamp: 1,
	})
	assert.ErrorIs(t, f.svc.Handle(ctx, raw, b.ID()), ErrNotNeighbour)
	assert.False(t, f.routes.IsOnline(c.ID()))

	// 被拒绝的消息不记入去重表，邻居建立后同一消息可以生效
	f.addNeighbour(t, b.ID(), types.TransportLan, 3*time.Millisecond)
	require.NoError(t, f.svc.Handle(ctx, raw, b.ID()))

	route, ok := f.routes.RouteToUser(c.ID())
	require.True(t, ok)
	assert.Equal(t, b.ID(), route.Via)
	assert.Equal(t, uint8(1), route.HopCount)
	assert.Equal(t, 8*time.Millisecond, route.RTT)

	_, ok = f.dir.GetByPeer(c.ID())
	assert.True(t, ok)
}

func routingInfoFrom(id *identity.Identity, ts int64, entries ...types.RoutingInfoEntry) []byte {
	return Seal(id, Content{
		NodeID:    id.ID(),
		Module:    ModuleRoutingInfo,
		Payload:   MarshalRoutingInfo(entries),
		Timestamp: ts,
	})
}

// TestService_Handle_RoutingInfoOrder 测试乱序到达的旧路由信息不覆盖新的
func TestService_Handle_RoutingInfoOrder(t *testing.T) {
	f := newFixture(t)
	b, c := newPeer(t), newPeer(t)
	f.addNeighbour(t, b.ID(), types.TransportLan, time.Millisecond)
	ctx := context.Background()

	require.NoError(t, f.svc.Handle(ctx, routingInfoFrom(b, 200, types.RoutingInfoEntry{User: c.ID()}), b.ID()))
	assert.True(t, f.routes.IsOnline(c.ID()))

	err := f.svc.Handle(ctx, routingInfoFrom(b, 100), b.ID())
	assert.ErrorIs(t, err, routing.ErrStaleRoutingInfo)
	assert.True(t, f.routes.IsOnline(c.ID()))

	require.NoError(t, f.svc.Handle(ctx, routingInfoFrom(b, 300), b.ID()))
	assert.False(t, f.routes.IsOnline(c.ID()))
}

// TestService_RequestUserInfo 测试资料请求选路
func TestService_RequestUserInfo(t *testing.T) {
	f := newFixture(t)
	b, c, d := newPeer(t), newPeer(t), newPeer(t)
	f.addNeighbour(t, b.ID(), types.TransportLan, time.Millisecond)
	_, err := f.routes.ApplyRoutingInfo(b.ID(), types.TransportLan, time.Millisecond,
		[]types.RoutingInfoEntry{{User: c.ID()}}, 0, time.Time{})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestUserInfo(ctx, b.ID()))
	require.NoError(t, f.svc.RequestUserInfo(ctx, c.ID()))
	assert.ErrorIs(t, f.svc.RequestUserInfo(ctx, d.ID()), ErrNoRoute)

	msgs := f.drain()
	require.Len(t, msgs, 2)
	for i, target := range []types.PeerID{b.ID(), c.ID()} {
		assert.Equal(t, b.ID(), msgs[i].to)
		content, err := Open(msgs[i].data)
		require.NoError(t, err)
		got, err := UnmarshalUserInfoRequest(content.Payload)
		require.NoError(t, err)
		assert.Equal(t, target, got)
	}
}

// TestService_Handle_UserInfoRequest 测试目标节点回复资料且受冷却限制
func TestService_Handle_UserInfoRequest(t *testing.T) {
	f := newFixture(t)
	b := newPeer(t)
	f.addNeighbour(t, b.ID(), types.TransportLan, time.Millisecond)
	f.setProfile("alice", 100)
	ctx := context.Background()

	request := func() []byte {
		return Seal(b, Content{
			NodeID:    b.ID(),
			Module:    ModuleUserInfoRequest,
			Payload:   MarshalUserInfoRequest(f.id.ID()),
			Timestamp: f.clk.Now().UnixMilli(),
		})
	}

	require.NoError(t, f.svc.Handle(ctx, request(), b.ID()))
	msgs := f.drain()
	require.Len(t, msgs, 1)
	assert.Equal(t, ModuleUserInfo, msgs[0].module)
	assert.Equal(t, b.ID(), msgs[0].to)

	f.clk.Add(time.Second)
	require.NoError(t, f.svc.Handle(ctx, request(), b.ID()))
	assert.Empty(t, f.drain())

	f.clk.Add(10 * time.Second)
	require.NoError(t, f.svc.Handle(ctx, request(), b.ID()))
	assert.Len(t, f.drain(), 1)
}

// TestService_Handle_ForwardRequest 测试转发发往其他节点的请求
func TestService_Handle_ForwardRequest(t *testing.T) {
	f := newFixture(t)
	b, c := newPeer(t), newPeer(t)
	f.addNeighbour(t, b.ID(), types.TransportLan, time.Millisecond)
	f.addNeighbour(t, c.ID(), types.TransportBle, time.Millisecond)

	raw := Seal(b, Content{
		NodeID:    b.ID(),
		Module:    ModuleUserInfoRequest,
		Payload:   MarshalUserInfoRequest(c.ID()),
		Timestamp: 1,
	})
	require.NoError(t, f.svc.Handle(context.Background(), raw, b.ID()))

	msgs := f.drain()
	require.Len(t, msgs, 1)
	assert.Equal(t, c.ID(), msgs[0].to)
	assert.Equal(t, types.TransportBle, msgs[0].transport)
	assert.Equal(t, raw, msgs[0].data)
}

// TestService_QueueFull 测试队列满时丢弃
func TestService_QueueFull(t *testing.T) {
	f := newFixture(t)
	f.svc.queue = newSendQueue(1)

	require.NoError(t, f.svc.enqueue("a", types.TransportLan, ModuleUserInfo, []byte{1}))
	assert.ErrorIs(t, f.svc.enqueue("b", types.TransportLan, ModuleUserInfo, []byte{2}), ErrQueueFull)
}

// recordingSender 记录发送的消息
type recordingSender struct {
	mu   sync.Mutex
	sent []types.PeerID
	ch   chan struct{}
}

func (s *recordingSender) Send(_ context.Context, to types.PeerID, _ types.TransportModule, _ []byte) error {
	s.mu.Lock()
	s.sent = append(s.sent, to)
	s.mu.Unlock()
	s.ch <- struct{}{}
	return nil
}

// TestService_Lifecycle 测试 Trigger 与事件驱动的请求经队列发出
func TestService_Lifecycle(t *testing.T) {
	bus := eventbus.NewBus()
	defer bus.Close()

	sender := &recordingSender{ch: make(chan struct{}, 8)}
	f := newFixture(t, WithSender(sender), WithEventBus(bus))
	b := newPeer(t)
	f.addNeighbour(t, b.ID(), types.TransportLan, time.Millisecond)
	f.setProfile("alice", 100)

	require.NoError(t, f.svc.Start(context.Background()))
	defer func() { require.NoError(t, f.svc.Stop(context.Background())) }()

	f.svc.Trigger()
	waitSend(t, sender.ch)

	em, err := bus.Emitter(new(types.EvtUserInfoRequested))
	require.NoError(t, err)
	require.NoError(t, em.Emit(types.EvtUserInfoRequested{PeerID: b.ID()}))
	waitSend(t, sender.ch)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, []types.PeerID{b.ID(), b.ID()}, sender.sent)
}

func waitSend(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("消息未发出")
	}
}

var _ pkgif.Sender = (*recordingSender)(nil)

// TestService_SyncNeighbour 测试向新邻居重放已知资料
func TestService_SyncNeighbour(t *testing.T) {
	f := newFixture(t)
	b, c, d := newPeer(t), newPeer(t), newPeer(t)
	f.addNeighbour(t, b.ID(), types.TransportLan, time.Millisecond)
	f.addNeighbour(t, c.ID(), types.TransportLan, time.Millisecond)
	f.setProfile("alice", 100)
	ctx := context.Background()

	require.NoError(t, f.svc.Handle(ctx, userInfoFrom(b, "bob", 200), b.ID()))
	f.drain()

	// 新邻居 d 收到本地资料与 bob 的资料
	assert.Equal(t, 2, f.svc.SyncNeighbour(d.ID(), types.TransportBle))
	msgs := f.drain()
	require.Len(t, msgs, 2)
	origins := make(map[types.PeerID]bool)
	for _, m := range msgs {
		assert.Equal(t, d.ID(), m.to)
		assert.Equal(t, types.TransportBle, m.transport)
		content, err := Open(m.data)
		require.NoError(t, err)
		origins[content.NodeID] = true
	}
	assert.True(t, origins[f.id.ID()])
	assert.True(t, origins[b.ID()])

	// 不把 bob 自己的资料重放给 bob
	assert.Equal(t, 1, f.svc.SyncNeighbour(b.ID(), types.TransportLan))
	f.drain()

	assert.Equal(t, 0, f.svc.SyncNeighbour(d.ID(), types.TransportNone))
}

// TestService_SyncOnNeighbourEvent 测试邻居出现事件触发同步
func TestService_SyncOnNeighbourEvent(t *testing.T) {
	bus := eventbus.NewBus()
	defer bus.Close()

	sender := &recordingSender{ch: make(chan struct{}, 8)}
	f := newFixture(t, WithSender(sender), WithEventBus(bus))
	d := newPeer(t)
	f.setProfile("alice", 100)

	require.NoError(t, f.svc.Start(context.Background()))
	defer func() { require.NoError(t, f.svc.Stop(context.Background())) }()

	em, err := bus.Emitter(new(types.EvtNeighbourChanged))
	require.NoError(t, err)

	// 丢失事件不触发同步
	require.NoError(t, em.Emit(types.EvtNeighbourChanged{PeerID: d.ID(), Transport: types.TransportLan, Lost: true}))
	require.NoError(t, em.Emit(types.EvtNeighbourChanged{PeerID: d.ID(), Transport: types.TransportLan}))
	waitSend(t, sender.ch)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, []types.PeerID{d.ID()}, sender.sent)
}

func userInfoRequestFrom(id *identity.Identity, target types.PeerID, ts int64) []byte {
	return Seal(id, Content{
		NodeID:    id.ID(),
		Module:    ModuleUserInfoRequest,
		Payload:   MarshalUserInfoRequest(target),
		Timestamp: ts,
	})
}

// TestService_RelayAnswersFromCache 测试中继用缓存的签名资料直接回复请求方
func TestService_RelayAnswersFromCache(t *testing.T) {
	f := newFixture(t)
	r, target := newPeer(t), newPeer(t)
	f.addNeighbour(t, r.ID(), types.TransportLan, time.Millisecond)
	f.addNeighbour(t, target.ID(), types.TransportBle, time.Millisecond)
	ctx := context.Background()

	info := userInfoFrom(target, "tom", 100)
	require.NoError(t, f.svc.Handle(ctx, info, target.ID()))
	f.drain()

	require.NoError(t, f.svc.Handle(ctx, userInfoRequestFrom(r, target.ID(), 1), r.ID()))
	msgs := f.drain()
	require.Len(t, msgs, 1)
	assert.Equal(t, r.ID(), msgs[0].to)
	assert.Equal(t, ModuleUserInfo, msgs[0].module)
	assert.Equal(t, info, msgs[0].data)
}

// TestService_RelayReturnsReply 测试目标的回复经中继交还请求方
func TestService_RelayReturnsReply(t *testing.T) {
	ctx := context.Background()

	t.Run("Learned", func(t *testing.T) {
		f := newFixture(t)
		r, target := newPeer(t), newPeer(t)
		f.addNeighbour(t, r.ID(), types.TransportLan, time.Millisecond)
		f.addNeighbour(t, target.ID(), types.TransportBle, time.Millisecond)

		require.NoError(t, f.svc.Handle(ctx, userInfoRequestFrom(r, target.ID(), 1), r.ID()))
		msgs := f.drain()
		require.Len(t, msgs, 1)
		assert.Equal(t, target.ID(), msgs[0].to)
		assert.Equal(t, ModuleUserInfoRequest, msgs[0].module)

		reply := userInfoFrom(target, "tom", 100)
		require.NoError(t, f.svc.Handle(ctx, reply, target.ID()))
		msgs = f.drain()
		require.Len(t, msgs, 1)
		assert.Equal(t, r.ID(), msgs[0].to)
		assert.Equal(t, reply, msgs[0].data)
	})

	t.Run("AlreadyKnown", func(t *testing.T) {
		f := newFixture(t)
		r, target := newPeer(t), newPeer(t)
		f.addNeighbour(t, r.ID(), types.TransportLan, time.Millisecond)
		f.addNeighbour(t, target.ID(), types.TransportBle, time.Millisecond)

		// 资料来自持久化，未经过传播缓存
		f.dir.Upsert(types.Profile{Name: "tom"}.ToUpdate(target.ID(), 100))

		require.NoError(t, f.svc.Handle(ctx, userInfoRequestFrom(r, target.ID(), 1), r.ID()))
		require.Len(t, f.drain(), 1)

		reply := userInfoFrom(target, "tom", 100)
		require.NoError(t, f.svc.Handle(ctx, reply, target.ID()))
		msgs := f.drain()
		require.Len(t, msgs, 1)
		assert.Equal(t, r.ID(), msgs[0].to)
		assert.Equal(t, reply, msgs[0].data)

		// 回复只交付一次，之后的请求由缓存应答
		require.ErrorIs(t, f.svc.Handle(ctx, reply, target.ID()), ErrDuplicate)
		assert.Empty(t, f.drain())
		require.NoError(t, f.svc.Handle(ctx, userInfoRequestFrom(r, target.ID(), 2), r.ID()))
		msgs = f.drain()
		require.Len(t, msgs, 1)
		assert.Equal(t, r.ID(), msgs[0].to)
	})
}
