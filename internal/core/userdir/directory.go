package userdir

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dep2p/go-meshrouter/internal/core/metrics"
	"github.com/dep2p/go-meshrouter/internal/core/storage/kv"
	"github.com/dep2p/go-meshrouter/internal/util/logger"
	pkgif "github.com/dep2p/go-meshrouter/pkg/interfaces"
	"github.com/dep2p/go-meshrouter/pkg/types"
)

var log = logger.Logger("core/userdir")

// fieldTimes 每个可广播字段最近一次生效的时间戳（Unix 毫秒）
type fieldTimes struct {
	Name       int64 `json:"name"`
	ProfilePic int64 `json:"profile_pic"`
	About      int64 `json:"about"`
	RegNo      int64 `json:"reg_no"`
	College    int64 `json:"college"`
}

// entry 目录内部条目
type entry struct {
	rec types.UserRecord
	ts  fieldTimes
}

// Directory 用户目录
type Directory struct {
	cfg Config

	mu      sync.RWMutex
	records map[types.Q8ID]*entry
	dirty   map[types.Q8ID]struct{}

	clock     clock.Clock
	requester pkgif.InfoRequester
	metrics   *metrics.Recorder
	updated   pkgif.Emitter
	store     *kv.Store

	// cooldownMu 保证"检查 + 记录"原子
	cooldownMu sync.Mutex
	cooldown   *lru.Cache[types.PeerID, time.Time]

	flushMu sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option 用户目录选项
type Option func(*Directory)

// WithClock 设置时钟
func WithClock(clk clock.Clock) Option {
	return func(d *Directory) {
		if clk != nil {
			d.clock = clk
		}
	}
}

// WithRequester 设置资料请求出口
func WithRequester(r pkgif.InfoRequester) Option {
	return func(d *Directory) {
		d.requester = r
	}
}

// WithMetrics 设置指标记录器
func WithMetrics(m *metrics.Recorder) Option {
	return func(d *Directory) {
		d.metrics = m
	}
}

// WithUpdateEmitter 设置 EvtUserUpdated 发射器
func WithUpdateEmitter(em pkgif.Emitter) Option {
	return func(d *Directory) {
		d.updated = em
	}
}

// WithStore 设置持久化存储
func WithStore(s *kv.Store) Option {
	return func(d *Directory) {
		d.store = s
	}
}

// New 创建用户目录
func New(cfg Config, opts ...Option) *Directory {
	cfg = cfg.normalize()
	cooldown, err := lru.New[types.PeerID, time.Time](cfg.CooldownCacheSize)
	if err != nil {
		// 只有 size <= 0 才会失败，normalize 已排除
		panic(err)
	}

	d := &Directory{
		cfg:      cfg,
		records:  make(map[types.Q8ID]*entry),
		dirty:    make(map[types.Q8ID]struct{}),
		clock:    clock.New(),
		cooldown: cooldown,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ============================================================================
//                              查询
// ============================================================================

// Get 按 Q8ID 读取记录副本
func (d *Directory) Get(q types.Q8ID) (types.UserRecord, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.records[q]
	if !ok {
		return types.UserRecord{}, false
	}
	return e.rec, true
}

// GetByPeer 按 PeerID 读取记录副本
func (d *Directory) GetByPeer(peer types.PeerID) (types.UserRecord, bool) {
	return d.Get(types.ToQ8ID(peer))
}

// SnapshotAll 返回所有记录的时间点一致快照，按 Q8ID 排序
func (d *Directory) SnapshotAll() []types.UserRecord {
	d.mu.RLock()
	out := make([]types.UserRecord, 0, len(d.records))
	for _, e := range d.records {
		out = append(out, e.rec)
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Q8ID.Less(out[j].Q8ID) })
	return out
}

// Count 返回记录数
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.records)
}

// ============================================================================
//                              写操作
// ============================================================================

// getOrCreateLocked 获取或创建条目，调用方持有写锁
func (d *Directory) getOrCreateLocked(peer types.PeerID) (*entry, bool) {
	q := types.ToQ8ID(peer)
	if e, ok := d.records[q]; ok {
		return e, false
	}
	e := &entry{rec: types.UserRecord{Q8ID: q, PeerID: peer}}
	d.records[q] = e
	d.dirty[q] = struct{}{}
	return e, true
}

// Ensure 确保节点有一条记录（Unknown -> Offline），返回是否新建
func (d *Directory) Ensure(peer types.PeerID) bool {
	if peer.IsEmpty() {
		return false
	}

	d.mu.Lock()
	_, created := d.getOrCreateLocked(peer)
	n := len(d.records)
	d.mu.Unlock()

	if created {
		d.metrics.SetKnownUsers(n)
	}
	return created
}

// Upsert 合并一次用户更新
//
// 记录不存在时先以默认值创建。每个提供的字段只有在更新时间戳严格
// 大于该字段已有时间戳时才覆盖。返回记录是否发生变化（含新建）。
func (d *Directory) Upsert(u types.UserUpdate) bool {
	if u.PeerID.IsEmpty() {
		return false
	}

	d.mu.Lock()
	e, created := d.getOrCreateLocked(u.PeerID)
	applied := false

	apply := func(val *string, dst *string, ts *int64) {
		if val == nil || u.Timestamp <= *ts {
			return
		}
		*dst = *val
		*ts = u.Timestamp
		applied = true
	}
	apply(u.Name, &e.rec.Name, &e.ts.Name)
	apply(u.ProfilePic, &e.rec.ProfilePic, &e.ts.ProfilePic)
	apply(u.About, &e.rec.About, &e.ts.About)
	apply(u.RegNo, &e.rec.RegNo, &e.ts.RegNo)
	apply(u.College, &e.rec.College, &e.ts.College)

	if applied {
		if u.Timestamp > e.rec.Updated {
			e.rec.Updated = u.Timestamp
		}
		d.dirty[e.rec.Q8ID] = struct{}{}
	}
	q := e.rec.Q8ID
	n := len(d.records)
	d.mu.Unlock()

	if created {
		d.metrics.SetKnownUsers(n)
	}
	if applied {
		d.metrics.ObserveUserUpdate()
		if d.updated != nil {
			_ = d.updated.Emit(types.EvtUserUpdated{Q8ID: q, PeerID: u.PeerID})
		}
		log.Debug("用户资料已更新", "peer", u.PeerID.ShortString(), "ts", u.Timestamp)
	}
	return created || applied
}

// SetVerified 设置本地验证标记，记录不存在时返回 false
func (d *Directory) SetVerified(q types.Q8ID, verified bool) bool {
	return d.setFlag(q, func(r *types.UserRecord) { r.Verified = verified })
}

// SetBlocked 设置本地屏蔽标记，记录不存在时返回 false
func (d *Directory) SetBlocked(q types.Q8ID, blocked bool) bool {
	return d.setFlag(q, func(r *types.UserRecord) { r.Blocked = blocked })
}

func (d *Directory) setFlag(q types.Q8ID, fn func(*types.UserRecord)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.records[q]
	if !ok {
		return false
	}
	fn(&e.rec)
	d.dirty[q] = struct{}{}
	return true
}

// ============================================================================
//                              资料请求
// ============================================================================

// RequestMissingInfo 在资料缺失时请求一次
//
// 记录不存在或名字为空、且该节点不在冷却窗口内时，
// 通过 InfoRequester 发出请求。返回是否真正发出了请求。
func (d *Directory) RequestMissingInfo(ctx context.Context, peer types.PeerID) bool {
	if peer.IsEmpty() || d.requester == nil {
		return false
	}
	if rec, ok := d.GetByPeer(peer); ok && rec.HasName() {
		return false
	}

	now := d.clock.Now()
	d.cooldownMu.Lock()
	if last, ok := d.cooldown.Get(peer); ok && now.Sub(last) < d.cfg.InfoRequestCooldown {
		d.cooldownMu.Unlock()
		return false
	}
	d.cooldown.Add(peer, now)
	d.cooldownMu.Unlock()

	if err := d.requester.RequestUserInfo(ctx, peer); err != nil {
		log.Debug("资料请求失败", "peer", peer.ShortString(), "error", err)
		d.cooldownMu.Lock()
		d.cooldown.Remove(peer)
		d.cooldownMu.Unlock()
		return false
	}

	d.metrics.ObserveInfoRequest()
	return true
}
