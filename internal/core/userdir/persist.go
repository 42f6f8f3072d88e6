package userdir

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dep2p/go-meshrouter/pkg/types"
)

// storePrefix 用户记录在存储引擎中的键前缀
var storePrefix = []byte("u/")

// storedRecord 落盘格式
//
// UserRecord 的标识字段不参与 JSON，因此单独保存 PeerID，
// 并带上每个字段的时间戳，重启后合并规则保持不变。
type storedRecord struct {
	PeerID string           `json:"peer_id"`
	Record types.UserRecord `json:"record"`
	Times  fieldTimes       `json:"times"`
}

// ============================================================================
//                              加载与落盘
// ============================================================================

// Load 从存储加载全部记录
//
// 已在内存中的记录不会被覆盖。无法解码的记录被跳过并从存储中删除。
// 未配置存储时直接返回。
func (d *Directory) Load() (int, error) {
	if d.store == nil {
		return 0, nil
	}

	loaded := make([]*entry, 0)
	var corrupt [][]byte
	err := d.store.Scan(func(key, value []byte) bool {
		var sr storedRecord
		if err := json.Unmarshal(value, &sr); err != nil {
			log.Warn("跳过无法解码的用户记录", "key", fmt.Sprintf("%x", key), "error", err)
			corrupt = append(corrupt, key)
			return true
		}
		peer, err := types.PeerIDFromBase58(sr.PeerID)
		if err != nil {
			log.Warn("跳过节点 ID 非法的用户记录", "key", fmt.Sprintf("%x", key), "error", err)
			corrupt = append(corrupt, key)
			return true
		}
		rec := sr.Record
		rec.PeerID = peer
		rec.Q8ID = types.ToQ8ID(peer)
		loaded = append(loaded, &entry{rec: rec, ts: sr.Times})
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("userdir: scan: %w", err)
	}
	if err := d.dropCorrupt(corrupt); err != nil {
		return 0, err
	}

	d.mu.Lock()
	n := 0
	for _, e := range loaded {
		if _, ok := d.records[e.rec.Q8ID]; ok {
			continue
		}
		d.records[e.rec.Q8ID] = e
		n++
	}
	total := len(d.records)
	d.mu.Unlock()

	d.metrics.SetKnownUsers(total)
	return n, nil
}

// dropCorrupt 删除无法解码的记录
func (d *Directory) dropCorrupt(keys [][]byte) error {
	if len(keys) == 0 {
		return nil
	}
	batch := d.store.NewBatch()
	for _, k := range keys {
		batch.Delete(k)
	}
	n := batch.Size()
	if err := batch.Write(); err != nil {
		return fmt.Errorf("userdir: drop corrupt: %w", err)
	}
	log.Info("已删除损坏的用户记录", "count", n)
	return nil
}

// Flush 把脏记录写入存储
//
// 写入失败时记录重新标记为脏，下次再试。未配置存储时返回 ErrNoStore。
func (d *Directory) Flush() error {
	if d.store == nil {
		return ErrNoStore
	}

	d.flushMu.Lock()
	defer d.flushMu.Unlock()

	d.mu.Lock()
	if len(d.dirty) == 0 {
		d.mu.Unlock()
		return nil
	}
	pending := make([]storedRecord, 0, len(d.dirty))
	keys := make([]types.Q8ID, 0, len(d.dirty))
	for q := range d.dirty {
		e, ok := d.records[q]
		if !ok {
			continue
		}
		pending = append(pending, storedRecord{
			PeerID: e.rec.PeerID.String(),
			Record: e.rec,
			Times:  e.ts,
		})
		keys = append(keys, q)
	}
	d.dirty = make(map[types.Q8ID]struct{})
	d.mu.Unlock()

	batch := d.store.NewBatch()
	for i := range pending {
		if err := batch.PutJSON(keys[i].Bytes(), pending[i]); err != nil {
			batch.Cancel()
			d.markDirty(keys)
			return fmt.Errorf("userdir: encode: %w", err)
		}
	}
	n := batch.Size()
	if err := batch.Write(); err != nil {
		d.markDirty(keys)
		return fmt.Errorf("userdir: write: %w", err)
	}

	log.Debug("用户记录已落盘", "count", n)
	return nil
}

func (d *Directory) markDirty(keys []types.Q8ID) {
	d.mu.Lock()
	for _, q := range keys {
		d.dirty[q] = struct{}{}
	}
	d.mu.Unlock()
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 加载已有记录并启动定期落盘
func (d *Directory) Start(_ context.Context) error {
	if d.store == nil {
		return nil
	}

	n, err := d.Load()
	if err != nil {
		return err
	}
	log.Info("用户目录已加载", "records", n)

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})
	go d.flushLoop(ctx)
	return nil
}

// Stop 停止落盘循环，做最后一次落盘并同步到磁盘
func (d *Directory) Stop(_ context.Context) error {
	if d.store == nil {
		return nil
	}
	if d.cancel != nil {
		d.cancel()
		<-d.done
		d.cancel = nil
	}
	if err := d.Flush(); err != nil {
		return err
	}
	if err := d.store.Sync(); err != nil {
		return fmt.Errorf("userdir: sync: %w", err)
	}
	return nil
}

func (d *Directory) flushLoop(ctx context.Context) {
	defer close(d.done)

	ticker := d.clock.Ticker(d.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Flush(); err != nil {
				log.Warn("用户记录落盘失败", "error", err)
			}
		}
	}
}
