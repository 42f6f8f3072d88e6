// Package netmap 组合邻居表、路由表与用户目录，生成面向应用层的只读视图
//
// 三个存储分别读取后组合，组合结果允许在存储之间有短暂的不一致。
// 唯一的副作用是枚举邻居时为没有名字的节点触发一次资料请求
// （受用户目录的冷却窗口限制）。
//
// RTT 在内部以微秒保存，只在这里换算为毫秒。
package netmap
