// Package propagation 实现用户资料与路由信息的传播
//
// # 消息格式
//
// 所有消息使用 protobuf 线格式（protowire）：
//
//	Envelope { 1: signature bytes, 2: content bytes }
//	Content  { 1: node-id bytes, 2: module varint, 3: payload bytes, 4: timestamp ms varint }
//
// 签名是 node-id 对应 Ed25519 私钥对 content 原始字节的签名。
//
// 模块：
//   - ModuleUserInfo：用户资料，payload 为 { 1: name, 2: profile_pic, 3: about, 4: reg_no, 5: college }，
//     缺失的字段表示"未提供"
//   - ModuleRoutingInfo：路由信息，payload 为重复的 { 1: user, 2: hop_count, 3: rtt_us }
//   - ModuleUserInfoRequest：资料请求，payload 为 { 1: target }
//
// # 发送
//
// 定时器或 Trigger 触发时，在锁外构建并签名本地资料，给每个当前邻居
// 入队一条消息。有界 FIFO 队列由单个 goroutine 排空并交给 interfaces.Sender。
// 队列满时直接丢弃，不做重试，下一个周期自然重发。
//
// # 接收
//
// 解码 -> 结构检查 -> 验签 -> 去重 -> 分发。任何一步失败都不会修改存储。
// 使目录发生变化的用户资料会转发给除来源外的所有邻居；
// 资料请求沿路由表转发到目标节点，目标节点把自己的资料回复给上一跳。
package propagation
