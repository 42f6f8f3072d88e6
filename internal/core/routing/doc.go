// Package routing 实现路由表
//
// 为每个用户保存到达它的所有路径（RouteEntry），同一 (Via, Transport)
// 只保留一条，新的观察替换旧的。
//
// # 在线状态
//
// 用户的在线状态不单独存储，而是由路径是否存在推导：
//
//	Unknown（无记录）-> Offline（有记录、无路径）-> Online（至少一条路径）
//
// 状态变化通过事件总线发布 types.EvtPresenceChanged。
//
// # 路径来源
//
//   - AddDirect：邻居观察产生的直连路径（HopCount = 0）
//   - ApplyRoutingInfo：邻居广播的路由信息，整体替换经由该邻居学到的路径
//   - RemoveVia：链路丢失时移除经由它的所有路径
//
// # 选路
//
// RouteToUser 依次比较跳数、RTT、传输优先级，见 types.RouteEntry.Better。
package routing
