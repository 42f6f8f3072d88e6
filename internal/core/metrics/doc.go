// Package metrics 提供路由核心的运行指标
//
// 两部分：
//   - Recorder: Prometheus 指标（邻居数、在线用户、消息收发、解码错误、队列丢弃）
//   - BandwidthCounter: 按传输和消息类型累计字节数，带 60 秒滑动窗口速率
//
// Recorder 的所有方法对 nil 接收者安全，未启用指标时组件直接持有 nil。
package metrics
