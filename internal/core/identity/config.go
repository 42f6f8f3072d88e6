package identity

import "crypto/ed25519"

// Config 身份模块配置
//
// 优先级：PrivateKey > KeyFile > 临时身份。
type Config struct {
	// PrivateKey 直接注入的私钥
	PrivateKey ed25519.PrivateKey

	// KeyFile 私钥 PEM 文件路径，不存在时自动创建
	KeyFile string
}

// DefaultConfig 返回默认配置（临时身份，不落盘）
func DefaultConfig() Config {
	return Config{}
}
