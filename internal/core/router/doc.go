// Package router 是传输模块上报事件的入口
//
// 传输模块并发调用 NeighbourSeen / NeighbourLost / UserUpdateReceived。
// 每个调用依次独立写入各个存储（邻居表 -> 用户目录 -> 路由表），
// 不持有跨存储的锁，组合视图是最终一致的。
package router
