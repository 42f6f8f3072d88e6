package badger

import (
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/dep2p/go-meshrouter/internal/core/storage/engine"
)

// WriteBatch BadgerDB 批量写入
type WriteBatch struct {
	engine *Engine
	batch  *badger.WriteBatch
	count  int
	err    error
	closed atomic.Bool
}

var _ engine.Batch = (*WriteBatch)(nil)

// Put 添加写入操作，错误在 Write 时返回
func (b *WriteBatch) Put(key, value []byte) {
	if b.closed.Load() || len(key) == 0 || b.err != nil {
		return
	}
	b.err = b.batch.Set(key, value)
	b.count++
}

// Delete 添加删除操作，错误在 Write 时返回
func (b *WriteBatch) Delete(key []byte) {
	if b.closed.Load() || len(key) == 0 || b.err != nil {
		return
	}
	b.err = b.batch.Delete(key)
	b.count++
}

// Write 提交批量操作
func (b *WriteBatch) Write() error {
	if b.closed.Swap(true) {
		return engine.ErrBatchClosed
	}
	if b.engine.closed.Load() {
		b.batch.Cancel()
		return engine.ErrClosed
	}
	if b.err != nil {
		b.batch.Cancel()
		return convertError(b.err)
	}
	return convertError(b.batch.Flush())
}

// Cancel 放弃未提交的操作
func (b *WriteBatch) Cancel() {
	if b.closed.Swap(true) {
		return
	}
	b.batch.Cancel()
}

// Size 返回待提交的操作数
func (b *WriteBatch) Size() int {
	return b.count
}
