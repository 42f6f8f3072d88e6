package userdir

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-meshrouter/internal/core/eventbus"
	"github.com/dep2p/go-meshrouter/internal/core/storage/engine"
	"github.com/dep2p/go-meshrouter/internal/core/storage/engine/badger"
	"github.com/dep2p/go-meshrouter/internal/core/storage/kv"
	pkgif "github.com/dep2p/go-meshrouter/pkg/interfaces"
	"github.com/dep2p/go-meshrouter/pkg/types"
)

var (
	peerA = types.PeerID("peer-a")
	peerB = types.PeerID("peer-b")
)

func str(s string) *string { return &s }

func nameUpdate(peer types.PeerID, name string, ts int64) types.UserUpdate {
	return types.UserUpdate{PeerID: peer, Timestamp: ts, Name: str(name)}
}

// countingRequester 记录请求次数
type countingRequester struct {
	mu    sync.Mutex
	calls []types.PeerID
	err   error
}

func (r *countingRequester) RequestUserInfo(_ context.Context, peer types.PeerID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, peer)
	return r.err
}

func (r *countingRequester) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// TestDirectory_Upsert 测试创建与合并
func TestDirectory_Upsert(t *testing.T) {
	d := New(DefaultConfig())

	assert.True(t, d.Upsert(nameUpdate(peerA, "alice", 100)))

	rec, ok := d.GetByPeer(peerA)
	require.True(t, ok)
	assert.Equal(t, "alice", rec.Name)
	assert.Equal(t, int64(100), rec.Updated)
	assert.Equal(t, types.ToQ8ID(peerA), rec.Q8ID)
	assert.Equal(t, peerA, rec.PeerID)

	// 只更新 About，Name 保持不变
	assert.True(t, d.Upsert(types.UserUpdate{PeerID: peerA, Timestamp: 200, About: str("hi")}))
	rec, _ = d.GetByPeer(peerA)
	assert.Equal(t, "alice", rec.Name)
	assert.Equal(t, "hi", rec.About)
	assert.Equal(t, int64(200), rec.Updated)
}

// TestDirectory_Upsert_Idempotent 测试重复投递不改变状态
func TestDirectory_Upsert_Idempotent(t *testing.T) {
	d := New(DefaultConfig())
	u := types.Profile{Name: "alice", College: "MIT"}.ToUpdate(peerA, 100)

	assert.True(t, d.Upsert(u))
	before, _ := d.GetByPeer(peerA)

	assert.False(t, d.Upsert(u))
	after, _ := d.GetByPeer(peerA)
	assert.Equal(t, before, after)
}

// TestDirectory_Upsert_OutOfOrder 测试乱序到达时字段不回退
func TestDirectory_Upsert_OutOfOrder(t *testing.T) {
	older := nameUpdate(peerA, "old", 100)
	newer := nameUpdate(peerA, "new", 200)

	for _, order := range [][]types.UserUpdate{{older, newer}, {newer, older}} {
		d := New(DefaultConfig())
		for _, u := range order {
			d.Upsert(u)
		}
		rec, ok := d.GetByPeer(peerA)
		require.True(t, ok)
		assert.Equal(t, "new", rec.Name)
		assert.Equal(t, int64(200), rec.Updated)
	}
}

// TestDirectory_Upsert_PerField 测试字段时间戳相互独立
func TestDirectory_Upsert_PerField(t *testing.T) {
	d := New(DefaultConfig())

	d.Upsert(types.UserUpdate{PeerID: peerA, Timestamp: 300, About: str("late")})
	// 更旧的时间戳仍可以设置从未设置过的字段
	d.Upsert(types.UserUpdate{PeerID: peerA, Timestamp: 100, Name: str("alice"), About: str("early")})

	rec, _ := d.GetByPeer(peerA)
	assert.Equal(t, "alice", rec.Name)
	assert.Equal(t, "late", rec.About)
	assert.Equal(t, int64(300), rec.Updated)
}

// TestDirectory_Upsert_ZeroTimestamp 测试零时间戳只创建记录
func TestDirectory_Upsert_ZeroTimestamp(t *testing.T) {
	d := New(DefaultConfig())

	assert.True(t, d.Upsert(nameUpdate(peerA, "alice", 0)))
	rec, ok := d.GetByPeer(peerA)
	require.True(t, ok)
	assert.Empty(t, rec.Name)

	assert.False(t, d.Upsert(types.UserUpdate{}))
}

// TestDirectory_Ensure 测试占位记录
func TestDirectory_Ensure(t *testing.T) {
	d := New(DefaultConfig())

	assert.True(t, d.Ensure(peerA))
	assert.False(t, d.Ensure(peerA))
	assert.False(t, d.Ensure(types.EmptyPeerID))

	rec, ok := d.GetByPeer(peerA)
	require.True(t, ok)
	assert.False(t, rec.HasName())
	assert.Equal(t, 1, d.Count())
}

// TestDirectory_Flags 测试本地标记
func TestDirectory_Flags(t *testing.T) {
	d := New(DefaultConfig())
	q := types.ToQ8ID(peerA)

	assert.False(t, d.SetVerified(q, true))

	d.Ensure(peerA)
	assert.True(t, d.SetVerified(q, true))
	assert.True(t, d.SetBlocked(q, true))

	// 网络更新不会清掉本地标记
	d.Upsert(nameUpdate(peerA, "alice", 10))

	rec, _ := d.Get(q)
	assert.True(t, rec.Verified)
	assert.True(t, rec.Blocked)
}

// TestDirectory_SnapshotAll 测试快照按 Q8ID 排序
func TestDirectory_SnapshotAll(t *testing.T) {
	d := New(DefaultConfig())
	d.Ensure(peerA)
	d.Ensure(peerB)

	snap := d.SnapshotAll()
	require.Len(t, snap, 2)
	assert.True(t, snap[0].Q8ID.Less(snap[1].Q8ID))
}

// TestDirectory_RequestMissingInfo 测试冷却窗口内只请求一次
func TestDirectory_RequestMissingInfo(t *testing.T) {
	clk := clock.NewMock()
	req := &countingRequester{}
	d := New(DefaultConfig(), WithClock(clk), WithRequester(req))
	ctx := context.Background()

	assert.True(t, d.RequestMissingInfo(ctx, peerA))
	assert.False(t, d.RequestMissingInfo(ctx, peerA))
	assert.Equal(t, 1, req.count())

	clk.Add(31 * time.Second)
	assert.True(t, d.RequestMissingInfo(ctx, peerA))
	assert.Equal(t, 2, req.count())

	// 已有名字不再请求
	d.Upsert(nameUpdate(peerB, "bob", 1))
	assert.False(t, d.RequestMissingInfo(ctx, peerB))
	assert.Equal(t, 2, req.count())
}

// TestDirectory_RequestMissingInfo_Failure 测试请求失败不进入冷却
func TestDirectory_RequestMissingInfo_Failure(t *testing.T) {
	req := &countingRequester{err: errors.New("boom")}
	d := New(DefaultConfig(), WithClock(clock.NewMock()), WithRequester(req))
	ctx := context.Background()

	assert.False(t, d.RequestMissingInfo(ctx, peerA))
	req.err = nil
	assert.True(t, d.RequestMissingInfo(ctx, peerA))
	assert.Equal(t, 2, req.count())
}

// TestDirectory_RequestMissingInfo_Concurrent 测试并发请求仍只发一次
func TestDirectory_RequestMissingInfo_Concurrent(t *testing.T) {
	req := &countingRequester{}
	d := New(DefaultConfig(), WithClock(clock.NewMock()), WithRequester(req))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.RequestMissingInfo(context.Background(), peerA)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, req.count())
}

// TestDirectory_UpdateEvent 测试更新事件
func TestDirectory_UpdateEvent(t *testing.T) {
	bus := eventbus.NewBus()
	defer bus.Close()

	sub, err := bus.Subscribe(new(types.EvtUserUpdated))
	require.NoError(t, err)
	em, err := bus.Emitter(new(types.EvtUserUpdated))
	require.NoError(t, err)

	d := New(DefaultConfig(), WithUpdateEmitter(em))
	d.Ensure(peerA)
	d.Upsert(nameUpdate(peerA, "alice", 5))

	select {
	case ev := <-sub.Out():
		evt := ev.(types.EvtUserUpdated)
		assert.Equal(t, peerA, evt.PeerID)
		assert.Equal(t, types.ToQ8ID(peerA), evt.Q8ID)
	case <-time.After(time.Second):
		t.Fatal("未收到 EvtUserUpdated")
	}
}

// TestBusRequester 测试资料请求转为事件
func TestBusRequester(t *testing.T) {
	bus := eventbus.NewBus()
	defer bus.Close()

	sub, err := bus.Subscribe(new(types.EvtUserInfoRequested))
	require.NoError(t, err)
	em, err := bus.Emitter(new(types.EvtUserInfoRequested))
	require.NoError(t, err)

	var r pkgif.InfoRequester = NewBusRequester(em)
	require.NoError(t, r.RequestUserInfo(context.Background(), peerA))

	ev := <-sub.Out()
	assert.Equal(t, peerA, ev.(types.EvtUserInfoRequested).PeerID)
}

func newMemEngine(t *testing.T) engine.Engine {
	t.Helper()
	cfg := engine.DefaultConfig("")
	cfg.InMemory = true
	eng, err := badger.New(cfg)
	require.NoError(t, err)
	require.NoError(t, eng.Start())
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

// TestDirectory_Persist 测试落盘后重新加载
func TestDirectory_Persist(t *testing.T) {
	eng := newMemEngine(t)
	ctx := context.Background()

	d := New(DefaultConfig(), WithStore(kv.New(eng, storePrefix)))
	require.NoError(t, d.Start(ctx))
	d.Upsert(types.Profile{Name: "alice", About: "hi"}.ToUpdate(peerA, 100))
	d.SetVerified(types.ToQ8ID(peerA), true)
	require.NoError(t, d.Stop(ctx))

	reloaded := New(DefaultConfig(), WithStore(kv.New(eng, storePrefix)))
	n, err := reloaded.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, ok := reloaded.GetByPeer(peerA)
	require.True(t, ok)
	assert.Equal(t, "alice", rec.Name)
	assert.True(t, rec.Verified)
	assert.Equal(t, peerA, rec.PeerID)

	// 字段时间戳随记录恢复，旧更新仍被拒绝
	assert.False(t, reloaded.Upsert(nameUpdate(peerA, "stale", 50)))
}

// TestDirectory_Load_Corrupt 测试损坏记录被跳过并删除
func TestDirectory_Load_Corrupt(t *testing.T) {
	eng := newMemEngine(t)
	ctx := context.Background()

	d := New(DefaultConfig(), WithStore(kv.New(eng, storePrefix)))
	require.NoError(t, d.Start(ctx))
	d.Upsert(nameUpdate(peerA, "alice", 100))
	require.NoError(t, d.Stop(ctx))

	require.NoError(t, eng.Put(append(append([]byte(nil), storePrefix...), "bad"...), []byte("{not json")))

	reloaded := New(DefaultConfig(), WithStore(kv.New(eng, storePrefix)))
	n, err := reloaded.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ok, err := eng.Has(append(append([]byte(nil), storePrefix...), "bad"...))
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestDirectory_Flush_NoStore 测试未配置存储
func TestDirectory_Flush_NoStore(t *testing.T) {
	d := New(DefaultConfig())
	assert.ErrorIs(t, d.Flush(), types.ErrStoreUnavailable)
	assert.NoError(t, d.Stop(context.Background()))
}
