// Package eventbus 实现进程内事件总线
//
// 路由核心内部的跨模块通知（邻居变化、在线状态变化、资料请求）
// 都通过总线传递，订阅关系在启动时显式建立，不存在全局回调槽。
//
//	sub, _ := bus.Subscribe(new(types.EvtPresenceChanged))
//	defer sub.Close()
//
//	for evt := range sub.Out() {
//	    e := evt.(types.EvtPresenceChanged)
//	    ...
//	}
//
// 发射永不阻塞：订阅者缓冲区满时事件被丢弃，并按 100 次一条的频率告警。
package eventbus
