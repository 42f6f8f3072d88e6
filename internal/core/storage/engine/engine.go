// Package engine 定义存储引擎的内部接口
package engine

import (
	pkgif "github.com/dep2p/go-meshrouter/pkg/interfaces"
)

// Engine 内部扩展接口
//
// 在公共 Engine 接口之上增加批量写入和前缀迭代。
type Engine interface {
	pkgif.Engine

	// NewBatch 创建批量写入对象，Write 时原子提交
	NewBatch() Batch

	// NewPrefixIterator 创建只遍历指定前缀的迭代器，调用者负责 Close
	NewPrefixIterator(prefix []byte) Iterator

	// Start 启动后台任务（值日志 GC）
	Start() error

	// Sync 同步数据到磁盘
	Sync() error
}

// Batch 批量写入
//
// 不是线程安全的，不应在多个 goroutine 中并发使用。
type Batch interface {
	Put(key, value []byte)
	Delete(key []byte)

	// Write 提交所有操作，提交后批量对象不可再用
	Write() error

	// Cancel 放弃未提交的操作
	Cancel()

	// Size 返回待提交的操作数
	Size() int
}

// Iterator 迭代器
//
//	it := eng.NewPrefixIterator(prefix)
//	defer it.Close()
//	for it.First(); it.Valid(); it.Next() {
//	    key, value := it.Key(), it.Value()
//	}
//	return it.Error()
type Iterator interface {
	First() bool
	Next() bool
	Valid() bool

	// Key 返回当前键的副本
	Key() []byte

	// Value 返回当前值的副本
	Value() []byte

	Close()
	Error() error
}
