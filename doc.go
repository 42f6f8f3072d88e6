// Package meshrouter 提供多传输网状网络的用户路由核心
//
// 节点通过 LAN、BLE、Internet 与本地传输发现直连邻居，meshrouter 负责：
//   - 维护用户目录（按字段 last-write-wins 合并用户资料）
//   - 维护邻居表与路由表（逐跳学习到达每个用户的最佳路径）
//   - 周期性签名广播本地资料与路由信息，并处理入站消息
//   - 为 UI 层提供邻居列表、在线用户与网络统计
//
// 传输模块通过 Notify* 方法把观察结果交给 Node，通过 interfaces.Sender
// 接收出站数据：
//
//	node, err := meshrouter.New(
//	    meshrouter.WithConfig(cfg),
//	    meshrouter.WithSender(sender),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := node.Start(ctx); err != nil {
//	    return err
//	}
//	defer node.Close()
//
//	node.NotifyNeighbourSeen(peer, types.TransportLan, 1500, time.Now())
package meshrouter
