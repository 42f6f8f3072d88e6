package propagation

import (
	"github.com/dep2p/go-meshrouter/internal/core/identity"
)

// Seal 编码内容并用本地身份签名，返回信封字节
func Seal(id *identity.Identity, c Content) []byte {
	content := c.Marshal()
	return Envelope{
		Signature: id.Sign(content),
		Content:   content,
	}.Marshal()
}

// Open 解码信封、检查结构并验证签名
//
// 签名必须由 Content.NodeID 对应的私钥生成。
func Open(raw []byte) (Content, error) {
	env, err := UnmarshalEnvelope(raw)
	if err != nil {
		return Content{}, err
	}
	c, err := UnmarshalContent(env.Content)
	if err != nil {
		return Content{}, err
	}
	if !identity.Verify(c.NodeID, env.Content, env.Signature) {
		return Content{}, ErrBadSignature
	}
	return c, nil
}
