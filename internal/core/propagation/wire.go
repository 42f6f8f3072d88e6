package propagation

import (
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-meshrouter/pkg/types"
)

// MsgModule 消息模块标签
type MsgModule uint64

const (
	// ModuleUserInfo 用户资料
	ModuleUserInfo MsgModule = 1
	// ModuleRoutingInfo 路由信息
	ModuleRoutingInfo MsgModule = 2
	// ModuleUserInfoRequest 资料请求
	ModuleUserInfoRequest MsgModule = 3
)

// String 返回模块名，用作指标标签
func (m MsgModule) String() string {
	switch m {
	case ModuleUserInfo:
		return "user_info"
	case ModuleRoutingInfo:
		return "routing_info"
	case ModuleUserInfoRequest:
		return "user_info_request"
	default:
		return "unknown"
	}
}

// IsValid 检查是否为已知模块
func (m MsgModule) IsValid() bool {
	return m >= ModuleUserInfo && m <= ModuleUserInfoRequest
}

// ============================================================================
//                              Envelope / Content
// ============================================================================

// Envelope 签名信封
type Envelope struct {
	Signature []byte
	Content   []byte
}

// Content 消息内容
type Content struct {
	NodeID    types.PeerID
	Module    MsgModule
	Payload   []byte
	Timestamp int64
}

// Marshal 编码信封
func (e Envelope) Marshal() []byte {
	b := make([]byte, 0, len(e.Signature)+len(e.Content)+8)
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, e.Signature)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, e.Content)
	return b
}

// UnmarshalEnvelope 解码信封
func UnmarshalEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			e.Signature = v
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			e.Content = v
			return n, nil
		}
		return skipField(num, typ, b)
	})
	if err != nil {
		return Envelope{}, err
	}
	if len(e.Signature) == 0 || len(e.Content) == 0 {
		return Envelope{}, fmt.Errorf("%w: empty envelope", ErrMalformed)
	}
	return e, nil
}

// Marshal 编码内容
func (c Content) Marshal() []byte {
	b := make([]byte, 0, len(c.NodeID)+len(c.Payload)+24)
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, c.NodeID.Bytes())
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.Module))
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, c.Payload)
	b = protowire.AppendTag(b, 4, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.Timestamp))
	return b
}

// UnmarshalContent 解码内容并做结构检查
func UnmarshalContent(data []byte) (Content, error) {
	var c Content
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			c.NodeID = types.PeerID(v)
			return n, nil
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			c.Module = MsgModule(v)
			return n, nil
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			c.Payload = v
			return n, nil
		case num == 4 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			c.Timestamp = int64(v)
			return n, nil
		}
		return skipField(num, typ, b)
	})
	if err != nil {
		return Content{}, err
	}

	switch {
	case c.NodeID.IsEmpty():
		return Content{}, fmt.Errorf("%w: missing node id", ErrMalformed)
	case !c.Module.IsValid():
		return Content{}, fmt.Errorf("%w: tag %d", ErrUnknownModule, c.Module)
	case c.Timestamp <= 0:
		return Content{}, fmt.Errorf("%w: missing timestamp", ErrMalformed)
	}
	return c, nil
}

// ============================================================================
//                              Payload
// ============================================================================

// MarshalUserInfo 编码用户资料，nil 字段不写入
func MarshalUserInfo(u types.UserUpdate) []byte {
	var b []byte
	for i, f := range []*string{u.Name, u.ProfilePic, u.About, u.RegNo, u.College} {
		if f == nil {
			continue
		}
		b = protowire.AppendTag(b, protowire.Number(i+1), protowire.BytesType)
		b = protowire.AppendString(b, *f)
	}
	return b
}

// UnmarshalUserInfo 解码用户资料，PeerID 与 Timestamp 由调用方从 Content 填入
func UnmarshalUserInfo(data []byte) (types.UserUpdate, error) {
	var u types.UserUpdate
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType || num < 1 || num > 5 {
			return skipField(num, typ, b)
		}
		v, n := protowire.ConsumeString(b)
		if n < 0 {
			return n, nil
		}
		s := v
		switch num {
		case 1:
			u.Name = &s
		case 2:
			u.ProfilePic = &s
		case 3:
			u.About = &s
		case 4:
			u.RegNo = &s
		case 5:
			u.College = &s
		}
		return n, nil
	})
	if err != nil {
		return types.UserUpdate{}, err
	}
	if u.IsEmpty() {
		return types.UserUpdate{}, fmt.Errorf("%w: empty user info", ErrMalformed)
	}
	return u, nil
}

// MarshalRoutingInfo 编码路由信息，RTT 以微秒传输
func MarshalRoutingInfo(entries []types.RoutingInfoEntry) []byte {
	var b []byte
	for _, e := range entries {
		var item []byte
		item = protowire.AppendTag(item, 1, protowire.BytesType)
		item = protowire.AppendBytes(item, e.User.Bytes())
		item = protowire.AppendTag(item, 2, protowire.VarintType)
		item = protowire.AppendVarint(item, uint64(e.HopCount))
		item = protowire.AppendTag(item, 3, protowire.VarintType)
		item = protowire.AppendVarint(item, uint64(e.RTT.Microseconds()))

		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, item)
	}
	return b
}

// UnmarshalRoutingInfo 解码路由信息
func UnmarshalRoutingInfo(data []byte) ([]types.RoutingInfoEntry, error) {
	var out []types.RoutingInfoEntry
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 || typ != protowire.BytesType {
			return skipField(num, typ, b)
		}
		item, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		e, err := unmarshalRoutingEntry(item)
		if err != nil {
			return 0, err
		}
		out = append(out, e)
		return n, nil
	})
	return out, err
}

// maxRTTMicros 换算为 time.Duration 不溢出的最大 RTT（微秒）
const maxRTTMicros = uint64(math.MaxInt64 / int64(time.Microsecond))

func unmarshalRoutingEntry(data []byte) (types.RoutingInfoEntry, error) {
	var e types.RoutingInfoEntry
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			e.User = types.PeerID(v)
			return n, nil
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if v > 255 {
				return 0, fmt.Errorf("%w: hop count %d", ErrMalformed, v)
			}
			e.HopCount = uint8(v)
			return n, nil
		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if v > maxRTTMicros {
				return 0, fmt.Errorf("%w: rtt %d", ErrMalformed, v)
			}
			e.RTT = time.Duration(v) * time.Microsecond
			return n, nil
		}
		return skipField(num, typ, b)
	})
	if err != nil {
		return e, err
	}
	if e.User.IsEmpty() {
		return e, fmt.Errorf("%w: routing entry without user", ErrMalformed)
	}
	return e, nil
}

// MarshalUserInfoRequest 编码资料请求
func MarshalUserInfoRequest(target types.PeerID) []byte {
	b := protowire.AppendTag(nil, 1, protowire.BytesType)
	return protowire.AppendBytes(b, target.Bytes())
}

// UnmarshalUserInfoRequest 解码资料请求
func UnmarshalUserInfoRequest(data []byte) (types.PeerID, error) {
	var target types.PeerID
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(b)
			target = types.PeerID(v)
			return n, nil
		}
		return skipField(num, typ, b)
	})
	if err != nil {
		return types.EmptyPeerID, err
	}
	if target.IsEmpty() {
		return types.EmptyPeerID, fmt.Errorf("%w: request without target", ErrMalformed)
	}
	return target, nil
}

// ============================================================================
//                              辅助
// ============================================================================

// fieldFunc 处理一个字段值，返回消耗的字节数；负数表示 protowire 解析错误
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// walkFields 依次遍历消息的所有字段
func walkFields(data []byte, fn fieldFunc) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]

		m, err := fn(num, typ, data)
		if err != nil {
			return err
		}
		if m < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(m))
		}
		data = data[m:]
	}
	return nil
}

func skipField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	return protowire.ConsumeFieldValue(num, typ, b), nil
}
