// Package neighbour 实现邻居表
//
// 邻居表按 (PeerID, Transport) 保存直接观察到的节点：最近一次观察时间、
// 微秒精度的 RTT 和传输相关地址。同一节点可以同时出现在多个传输中。
//
// 条目只在传输模块显式上报丢失时删除，本层不做基于时间的过期。
//
// 同一节点通过多个传输直连时，IsNeighbour 按固定优先级取值：
//
//	Internet > Lan > Ble > Local
package neighbour
