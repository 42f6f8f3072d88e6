// Package transport 定义出站传输的公共错误
//
// 真实的 LAN / BLE / Internet 驱动不在本仓库中，它们实现
// interfaces.Sender 并通过 meshrouter.WithSender 注入。
// 子包 memory 提供进程内实现，用于测试与演示。
package transport
