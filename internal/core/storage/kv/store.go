// Package kv 提供带前缀隔离的 KV 存储抽象层
//
//	users := kv.New(eng, []byte("u/"))
//	b := users.NewBatch()
//	b.PutJSON(q8id.Bytes(), record)   // 实际键: u/<q8id>
//	b.Write()
package kv

import (
	"encoding/json"

	"github.com/dep2p/go-meshrouter/internal/core/storage/engine"
)

// Store 带前缀隔离的 KV 存储
type Store struct {
	engine engine.Engine
	prefix []byte
}

// New 创建 KVStore，所有操作自动添加 prefix
func New(eng engine.Engine, prefix []byte) *Store {
	return &Store{
		engine: eng,
		prefix: append([]byte(nil), prefix...),
	}
}

// prefixKey 为键添加前缀
func (s *Store) prefixKey(key []byte) []byte {
	prefixed := make([]byte, len(s.prefix)+len(key))
	copy(prefixed, s.prefix)
	copy(prefixed[len(s.prefix):], key)
	return prefixed
}

// stripPrefix 从键中移除前缀
func (s *Store) stripPrefix(key []byte) []byte {
	if len(key) < len(s.prefix) {
		return key
	}
	return key[len(s.prefix):]
}

// Sync 同步底层引擎数据到磁盘
func (s *Store) Sync() error {
	return s.engine.Sync()
}

// ============================================================================
//                              前缀迭代
// ============================================================================

// Scan 遍历本 Store 下的所有键值对
//
// 回调返回 false 时停止。传给回调的 key 已去除前缀。
func (s *Store) Scan(fn func(key, value []byte) bool) error {
	it := s.engine.NewPrefixIterator(s.prefix)
	defer it.Close()

	for it.First(); it.Valid(); it.Next() {
		if !fn(s.stripPrefix(it.Key()), it.Value()) {
			break
		}
	}
	return it.Error()
}

// ============================================================================
//                              批量操作
// ============================================================================

// Batch 带前缀的批量操作
type Batch struct {
	store *Store
	batch engine.Batch
}

// NewBatch 创建批量操作
func (s *Store) NewBatch() *Batch {
	return &Batch{
		store: s,
		batch: s.engine.NewBatch(),
	}
}

// Put 添加写入操作
func (b *Batch) Put(key, value []byte) {
	b.batch.Put(b.store.prefixKey(key), value)
}

// PutJSON 添加 JSON 写入操作
func (b *Batch) PutJSON(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b.Put(key, data)
	return nil
}

// Delete 添加删除操作
func (b *Batch) Delete(key []byte) {
	b.batch.Delete(b.store.prefixKey(key))
}

// Size 返回操作数量
func (b *Batch) Size() int {
	return b.batch.Size()
}

// Write 提交批量操作
func (b *Batch) Write() error {
	return b.batch.Write()
}

// Cancel 放弃批量操作
func (b *Batch) Cancel() {
	b.batch.Cancel()
}
