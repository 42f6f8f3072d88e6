// Package storage 提供路由核心的持久化适配层
//
// 路由核心本身只持有内存存储；用户目录通过本模块做
// "启动时加载快照、运行中定期落盘"。
//
// 层次：
//
//	engine.Engine        - 引擎接口（批量写入、前缀迭代）
//	engine/badger        - BadgerDB 实现（磁盘或纯内存）
//	kv.Store             - 带前缀隔离的键值存储，提供 JSON 便捷方法
//
// 键空间约定：
//   - u/   - 用户目录记录
package storage
