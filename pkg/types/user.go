package types

// ============================================================================
//                              UserRecord - 用户记录
// ============================================================================

// UserRecord 用户目录记录
//
// 以 Q8ID 为键。首次观察到节点（邻居发现、路由信息或用户更新广播）时创建，
// 字段为默认值；之后原地合并更新；永不删除。
type UserRecord struct {
	Q8ID       Q8ID   `json:"-"`
	PeerID     PeerID `json:"-"`
	Name       string `json:"name"`
	Verified   bool   `json:"verified"`
	Blocked    bool   `json:"blocked"`
	ProfilePic string `json:"profile_pic,omitempty"`
	About      string `json:"about,omitempty"`
	RegNo      string `json:"reg_no,omitempty"`
	College    string `json:"college,omitempty"`

	// Updated 最近一次被应用的字段时间戳（Unix 毫秒），0 表示从未收到资料
	Updated int64 `json:"updated"`
}

// HasName 检查是否已经获得显示名称
func (r UserRecord) HasName() bool {
	return r.Name != ""
}

// ============================================================================
//                              UserUpdate - 增量更新
// ============================================================================

// UserUpdate 用户资料的增量更新
//
// nil 字段表示"未提供"，不会覆盖已有值。
// Timestamp 为更新内嵌的时间戳（Unix 毫秒），用于按字段的 last-write-wins。
type UserUpdate struct {
	PeerID    PeerID
	Timestamp int64

	Name       *string
	ProfilePic *string
	About      *string
	RegNo      *string
	College    *string
}

// IsEmpty 检查更新是否不含任何字段
func (u UserUpdate) IsEmpty() bool {
	return u.Name == nil && u.ProfilePic == nil && u.About == nil &&
		u.RegNo == nil && u.College == nil
}

// Profile 本地用户资料（对应 UserUpdate 中的可广播字段）
type Profile struct {
	Name       string `json:"name"`
	ProfilePic string `json:"profile_pic,omitempty"`
	About      string `json:"about,omitempty"`
	RegNo      string `json:"reg_no,omitempty"`
	College    string `json:"college,omitempty"`
}

// ToUpdate 转换为携带全部字段的 UserUpdate
func (p Profile) ToUpdate(id PeerID, ts int64) UserUpdate {
	name, pic, about, regNo, college := p.Name, p.ProfilePic, p.About, p.RegNo, p.College
	return UserUpdate{
		PeerID:     id,
		Timestamp:  ts,
		Name:       &name,
		ProfilePic: &pic,
		About:      &about,
		RegNo:      &regNo,
		College:    &college,
	}
}

// ============================================================================
//                              UserSummary - 应用层视图
// ============================================================================

// UserSummary 用户摘要（记录 + 在线状态 + 连接列表）
type UserSummary struct {
	Q8ID        string       `json:"q8id"`
	PeerID      string       `json:"peer_id"`
	Record      UserRecord   `json:"record"`
	Online      bool         `json:"online"`
	Connections []RouteEntry `json:"connections"`
}
