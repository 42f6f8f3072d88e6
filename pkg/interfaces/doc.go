// Package interfaces 定义 meshrouter 的公共接口
//
// 接口按关注点拆分为独立文件：
//   - eventbus.go       - 事件总线（替代全局回调槽）
//   - transport.go      - 出站发送契约（由传输模块实现）
//   - directory.go      - 用户信息请求契约
//   - storage.go        - 存储引擎基础接口
//
// 实现位于 internal/core 下对应目录，通过 fx 模块注入。
package interfaces
