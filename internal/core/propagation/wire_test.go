package propagation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-meshrouter/internal/core/identity"
	"github.com/dep2p/go-meshrouter/pkg/types"
)

func str(s string) *string { return &s }

// TestSealOpen 测试签名信封
func TestSealOpen(t *testing.T) {
	id, err := identity.Generate()
	require.NoError(t, err)

	raw := Seal(id, Content{
		NodeID:    id.ID(),
		Module:    ModuleUserInfo,
		Payload:   MarshalUserInfo(types.UserUpdate{Name: str("alice")}),
		Timestamp: 42,
	})

	c, err := Open(raw)
	require.NoError(t, err)
	assert.Equal(t, id.ID(), c.NodeID)
	assert.Equal(t, ModuleUserInfo, c.Module)
	assert.Equal(t, int64(42), c.Timestamp)

	u, err := UnmarshalUserInfo(c.Payload)
	require.NoError(t, err)
	require.NotNil(t, u.Name)
	assert.Equal(t, "alice", *u.Name)
	assert.Nil(t, u.About)
}

// TestOpen_Tampered 测试篡改内容后验签失败
func TestOpen_Tampered(t *testing.T) {
	id, err := identity.Generate()
	require.NoError(t, err)
	other, err := identity.Generate()
	require.NoError(t, err)

	content := Content{NodeID: other.ID(), Module: ModuleUserInfo, Payload: []byte{}, Timestamp: 1}.Marshal()
	raw := Envelope{Signature: id.Sign(content), Content: content}.Marshal()

	_, err = Open(raw)
	assert.ErrorIs(t, err, ErrBadSignature)
	assert.ErrorIs(t, err, types.ErrDecode)
}

// TestOpen_Malformed 测试结构错误
func TestOpen_Malformed(t *testing.T) {
	id, err := identity.Generate()
	require.NoError(t, err)

	cases := map[string][]byte{
		"empty":     nil,
		"garbage":   {0xff, 0xff, 0xff},
		"no sig":    Envelope{Content: []byte{1}}.Marshal(),
		"truncated": Seal(id, Content{NodeID: id.ID(), Module: ModuleUserInfo, Timestamp: 1})[:10],
		"no ts":     Seal(id, Content{NodeID: id.ID(), Module: ModuleUserInfo}),
	}
	for name, raw := range cases {
		_, err := Open(raw)
		assert.ErrorIs(t, err, types.ErrDecode, name)
	}

	_, err = Open(Seal(id, Content{NodeID: id.ID(), Module: 9, Timestamp: 1}))
	assert.ErrorIs(t, err, ErrUnknownModule)
}

// TestUnmarshalContent_UnknownFields 测试忽略未知字段
func TestUnmarshalContent_UnknownFields(t *testing.T) {
	b := Content{NodeID: "n", Module: ModuleRoutingInfo, Timestamp: 7}.Marshal()
	b = protowire.AppendTag(b, 15, protowire.VarintType)
	b = protowire.AppendVarint(b, 99)

	c, err := UnmarshalContent(b)
	require.NoError(t, err)
	assert.Equal(t, types.PeerID("n"), c.NodeID)
	assert.Equal(t, int64(7), c.Timestamp)
}

// TestRoutingInfo_Codec 测试路由信息编码
func TestRoutingInfo_Codec(t *testing.T) {
	in := []types.RoutingInfoEntry{
		{User: "a", HopCount: 0, RTT: 1500 * time.Microsecond},
		{User: "b", HopCount: 3, RTT: 80 * time.Millisecond},
	}
	out, err := UnmarshalRoutingInfo(MarshalRoutingInfo(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	empty, err := UnmarshalRoutingInfo(MarshalRoutingInfo(nil))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// TestUserInfo_Empty 测试空资料被拒绝
func TestUserInfo_Empty(t *testing.T) {
	_, err := UnmarshalUserInfo(nil)
	assert.ErrorIs(t, err, ErrMalformed)
}

// TestUserInfoRequest_Codec 测试资料请求编码
func TestUserInfoRequest_Codec(t *testing.T) {
	target, err := UnmarshalUserInfoRequest(MarshalUserInfoRequest("peer"))
	require.NoError(t, err)
	assert.Equal(t, types.PeerID("peer"), target)

	_, err = UnmarshalUserInfoRequest(nil)
	assert.ErrorIs(t, err, ErrMalformed)
}

// TestRoutingInfo_RTTOverflow 测试超出 time.Duration 范围的 RTT 被拒绝
func TestRoutingInfo_RTTOverflow(t *testing.T) {
	var item []byte
	item = protowire.AppendTag(item, 1, protowire.BytesType)
	item = protowire.AppendBytes(item, []byte("a"))
	item = protowire.AppendTag(item, 3, protowire.VarintType)
	item = protowire.AppendVarint(item, maxRTTMicros+1)

	b := protowire.AppendTag(nil, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, item)

	_, err := UnmarshalRoutingInfo(b)
	assert.ErrorIs(t, err, ErrMalformed)

	// 边界值可以解码且非负
	item = protowire.AppendTag(nil, 1, protowire.BytesType)
	item = protowire.AppendBytes(item, []byte("a"))
	item = protowire.AppendTag(item, 3, protowire.VarintType)
	item = protowire.AppendVarint(item, maxRTTMicros)
	b = protowire.AppendTag(nil, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, item)

	out, err := UnmarshalRoutingInfo(b)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].RTT > 0)
}
