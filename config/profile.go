package config

import "fmt"

// maxProfileField 单个资料字段的最大字节数
const maxProfileField = 4096

// ProfileConfig 本地用户资料
type ProfileConfig struct {
	Name       string `json:"name"`
	About      string `json:"about,omitempty"`
	ProfilePic string `json:"profile_pic,omitempty"`
	RegNo      string `json:"reg_no,omitempty"`
	College    string `json:"college,omitempty"`
}

// DefaultProfileConfig 返回空资料
func DefaultProfileConfig() ProfileConfig {
	return ProfileConfig{}
}

// IsEmpty 检查是否未设置任何资料
func (c ProfileConfig) IsEmpty() bool {
	return c == ProfileConfig{}
}

// Validate 验证资料长度
func (c ProfileConfig) Validate() error {
	fields := map[string]string{
		"name":        c.Name,
		"about":       c.About,
		"profile_pic": c.ProfilePic,
		"reg_no":      c.RegNo,
		"college":     c.College,
	}
	for k, v := range fields {
		if len(v) > maxProfileField {
			return fmt.Errorf("profile: %s exceeds %d bytes", k, maxProfileField)
		}
	}
	return nil
}
