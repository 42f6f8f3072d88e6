package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/dep2p/go-meshrouter/pkg/types"
)

// Identity 本地节点身份
type Identity struct {
	priv ed25519.PrivateKey
	id   types.PeerID
}

// New 从私钥创建身份
func New(priv ed25519.PrivateKey) (*Identity, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, ErrInvalidKeySize
	}
	pub := priv.Public().(ed25519.PublicKey)
	return &Identity{
		priv: priv,
		id:   types.PeerID(pub),
	}, nil
}

// Generate 生成新的随机身份
func Generate() (*Identity, error) {
	return generateFrom(rand.Reader)
}

func generateFrom(r io.Reader) (*Identity, error) {
	_, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return nil, fmt.Errorf("identity: generate key: %w", err)
	}
	return New(priv)
}

// ID 返回本节点 PeerID
func (i *Identity) ID() types.PeerID {
	return i.id
}

// PublicKey 返回公钥
func (i *Identity) PublicKey() ed25519.PublicKey {
	return i.priv.Public().(ed25519.PublicKey)
}

// PrivateKey 返回私钥（用于持久化）
func (i *Identity) PrivateKey() ed25519.PrivateKey {
	return i.priv
}

// Sign 对数据签名
func (i *Identity) Sign(data []byte) []byte {
	return ed25519.Sign(i.priv, data)
}

// ============================================================================
//                              验证
// ============================================================================

// PublicKeyFromPeerID 从 PeerID 还原公钥
func PublicKeyFromPeerID(peer types.PeerID) (ed25519.PublicKey, error) {
	raw := peer.Bytes()
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: peer id is %d bytes", types.ErrInvalidIdentity, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// Verify 使用 PeerID 对应的公钥验证签名
//
// PeerID 不是合法公钥时返回 false。
func Verify(peer types.PeerID, data, sig []byte) bool {
	pub, err := PublicKeyFromPeerID(peer)
	if err != nil {
		return false
	}
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, data, sig)
}
