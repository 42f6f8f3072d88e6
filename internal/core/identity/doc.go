// Package identity 提供本地节点身份
//
// 节点身份是一对 Ed25519 密钥，PeerID 直接取 32 字节公钥，
// 因此任何人拿到 PeerID 就能验证该节点的签名，无需额外的密钥交换。
//
// 身份模块负责：
//   - 密钥生成与 PEM 文件持久化（首次运行自动创建）
//   - 对消息内容签名
//   - 根据 PeerID 验证签名
package identity
