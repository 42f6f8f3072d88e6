package config

// IdentityConfig 身份配置
type IdentityConfig struct {
	// KeyFile Ed25519 私钥 PEM 文件路径
	// 文件不存在时生成并保存；为空时使用临时身份
	KeyFile string `json:"key_file"`
}

// DefaultIdentityConfig 返回默认身份配置
func DefaultIdentityConfig() IdentityConfig {
	return IdentityConfig{}
}

// Validate 验证身份配置
func (c IdentityConfig) Validate() error {
	return nil
}
