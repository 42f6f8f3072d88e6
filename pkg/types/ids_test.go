package types

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomPeerID(t *testing.T) PeerID {
	t.Helper()
	b := make([]byte, 32)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return PeerID(b)
}

// TestToQ8ID_Deterministic 测试 Q8ID 派生的确定性
func TestToQ8ID_Deterministic(t *testing.T) {
	for i := 0; i < 50; i++ {
		id := randomPeerID(t)
		assert.Equal(t, ToQ8ID(id), ToQ8ID(id))
		assert.False(t, ToQ8ID(id).IsEmpty())
	}
}

// TestToQ8ID_Distinct 测试不同 PeerID 派生出不同 Q8ID
func TestToQ8ID_Distinct(t *testing.T) {
	seen := make(map[Q8ID]PeerID)
	for i := 0; i < 1000; i++ {
		id := randomPeerID(t)
		q := ToQ8ID(id)
		prev, dup := seen[q]
		require.False(t, dup, "collision between %s and %s", prev, id)
		seen[q] = id
	}
}

// TestPeerID_Base58RoundTrip 测试 Base58 往返编码
func TestPeerID_Base58RoundTrip(t *testing.T) {
	for i := 0; i < 50; i++ {
		id := randomPeerID(t)
		parsed, err := PeerIDFromBase58(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	}

	// 前导零字节也必须保留
	id := PeerID([]byte{0, 0, 1, 2, 3})
	parsed, err := PeerIDFromBase58(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

// TestPeerIDFromBase58_Invalid 测试非法输入
func TestPeerIDFromBase58_Invalid(t *testing.T) {
	for _, s := range []string{"", "0OIl", "abc!"} {
		_, err := PeerIDFromBase58(s)
		require.Error(t, err, s)
		assert.ErrorIs(t, err, ErrInvalidEncoding)
		assert.ErrorIs(t, err, ErrDecode)
	}
}

// TestPeerID_ShortString 测试短字符串
func TestPeerID_ShortString(t *testing.T) {
	id := randomPeerID(t)
	assert.Len(t, id.ShortString(), 8)
	assert.Equal(t, id.String()[:8], id.ShortString())
	assert.Equal(t, "", EmptyPeerID.String())
}

// TestParseQ8ID 测试 Q8ID 解析
func TestParseQ8ID(t *testing.T) {
	q := ToQ8ID(randomPeerID(t))
	parsed, err := ParseQ8ID(q.String())
	require.NoError(t, err)
	assert.Equal(t, q, parsed)

	_, err = ParseQ8ID("")
	assert.ErrorIs(t, err, ErrInvalidEncoding)

	// 合法 Base58 但长度不是 8 字节
	_, err = ParseQ8ID(randomPeerID(t).String())
	assert.ErrorIs(t, err, ErrInvalidIdentity)
}

// TestQ8ID_Less 测试排序比较
func TestQ8ID_Less(t *testing.T) {
	a := Q8ID{0, 0, 0, 0, 0, 0, 0, 1}
	b := Q8ID{0, 0, 0, 0, 0, 0, 0, 2}
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.False(t, a.Less(a))
}
