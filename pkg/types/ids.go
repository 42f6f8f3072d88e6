package types

import (
	"fmt"

	"github.com/minio/sha256-simd"
	"github.com/mr-tron/base58"
)

// ============================================================================
//                              PeerID - 节点身份
// ============================================================================

// PeerID 节点唯一标识符
//
// 内部以原始字节保存（string 仅作为可比较的字节容器，可直接作为 map 键）。
// 本模块创建的节点使用 32 字节 Ed25519 公钥作为 PeerID。
//
// 外部表示格式：
//   - String(): Base58 编码（用户可读、可分享）
//   - ShortString(): Base58 前 8 个字符（日志简短标识）
type PeerID string

// EmptyPeerID 空节点 ID
const EmptyPeerID PeerID = ""

// PeerIDFromBytes 从原始字节创建 PeerID
func PeerIDFromBytes(b []byte) (PeerID, error) {
	if len(b) == 0 {
		return EmptyPeerID, ErrInvalidIdentity
	}
	return PeerID(b), nil
}

// PeerIDFromBase58 从 Base58 字符串解析 PeerID
//
// 输入为空或包含非法字符时返回 ErrInvalidEncoding。
func PeerIDFromBase58(s string) (PeerID, error) {
	if s == "" {
		return EmptyPeerID, fmt.Errorf("%w: empty peer id", ErrInvalidEncoding)
	}
	b, err := base58.Decode(s)
	if err != nil {
		return EmptyPeerID, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if len(b) == 0 {
		return EmptyPeerID, ErrInvalidEncoding
	}
	return PeerID(b), nil
}

// String 返回 PeerID 的 Base58 字符串表示
func (id PeerID) String() string {
	if id.IsEmpty() {
		return ""
	}
	return base58.Encode([]byte(id))
}

// ShortString 返回 Base58 前 8 个字符，用于日志
func (id PeerID) ShortString() string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// Bytes 返回原始字节的副本
func (id PeerID) Bytes() []byte {
	return []byte(id)
}

// IsEmpty 检查 PeerID 是否为空
func (id PeerID) IsEmpty() bool {
	return id == EmptyPeerID
}

// ============================================================================
//                              Q8ID - 8 字节短标识
// ============================================================================

// Q8IDSize Q8ID 字节长度
const Q8IDSize = 8

// Q8ID 由 PeerID 派生的 8 字节短标识
//
// 派生算法：SHA256(PeerID 原始字节) 的前 8 字节。
// 用作用户目录、路由表及线上消息的主键。
type Q8ID [Q8IDSize]byte

// EmptyQ8ID 空 Q8ID
var EmptyQ8ID Q8ID

// ToQ8ID 从 PeerID 派生 Q8ID
//
// 纯函数：无 I/O、不会失败、相同输入永远得到相同输出。
func ToQ8ID(id PeerID) Q8ID {
	sum := sha256.Sum256([]byte(id))
	var q Q8ID
	copy(q[:], sum[:Q8IDSize])
	return q
}

// Q8IDFromBytes 从字节切片创建 Q8ID
func Q8IDFromBytes(b []byte) (Q8ID, error) {
	if len(b) != Q8IDSize {
		return EmptyQ8ID, ErrInvalidIdentity
	}
	var q Q8ID
	copy(q[:], b)
	return q, nil
}

// ParseQ8ID 从 Base58 字符串解析 Q8ID
func ParseQ8ID(s string) (Q8ID, error) {
	if s == "" {
		return EmptyQ8ID, fmt.Errorf("%w: empty q8id", ErrInvalidEncoding)
	}
	b, err := base58.Decode(s)
	if err != nil {
		return EmptyQ8ID, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	q, err := Q8IDFromBytes(b)
	if err != nil {
		return EmptyQ8ID, fmt.Errorf("%w: q8id must be %d bytes", ErrInvalidIdentity, Q8IDSize)
	}
	return q, nil
}

// String 返回 Q8ID 的 Base58 字符串表示
func (q Q8ID) String() string {
	return base58.Encode(q[:])
}

// Bytes 返回 Q8ID 的字节切片
func (q Q8ID) Bytes() []byte {
	return q[:]
}

// IsEmpty 检查 Q8ID 是否为空
func (q Q8ID) IsEmpty() bool {
	return q == EmptyQ8ID
}

// Less 按字节序比较，用于稳定排序
func (q Q8ID) Less(other Q8ID) bool {
	for i := range q {
		if q[i] != other[i] {
			return q[i] < other[i]
		}
	}
	return false
}
