// Package types 定义 meshrouter 的基础类型
//
// 这是整个系统的最底层包，不依赖任何其他 meshrouter 内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据：
//   - PeerID / Q8ID：节点身份及其 8 字节短标识
//   - TransportModule：传输模块枚举
//   - UserRecord / UserUpdate：用户目录记录与增量更新
//   - NeighbourEntry：邻居表条目
//   - RouteEntry：路由表条目
//   - NeighbourSummary / NetworkStats：面向应用层的视图
//   - Evt*：事件总线事件
package types
