package identity

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/dep2p/go-meshrouter/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

// TestIdentity_SignVerify 测试签名可由 PeerID 验证
func TestIdentity_SignVerify(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)
	assert.Len(t, id.ID().Bytes(), 32)

	msg := []byte("hello mesh")
	sig := id.Sign(msg)

	assert.True(t, Verify(id.ID(), msg, sig))
	assert.False(t, Verify(id.ID(), []byte("tampered"), sig))

	other, err := Generate()
	require.NoError(t, err)
	assert.False(t, Verify(other.ID(), msg, sig))
}

// TestVerify_InvalidInput 测试非法 PeerID 和签名
func TestVerify_InvalidInput(t *testing.T) {
	assert.False(t, Verify(types.PeerID("short"), []byte("x"), make([]byte, 64)))

	id, err := Generate()
	require.NoError(t, err)
	assert.False(t, Verify(id.ID(), []byte("x"), []byte("short-sig")))

	_, err = PublicKeyFromPeerID(types.PeerID("short"))
	assert.ErrorIs(t, err, types.ErrInvalidIdentity)
}

// TestGenerate_Deterministic 测试相同随机源得到相同身份
func TestGenerate_Deterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, 32)
	a, err := generateFrom(bytes.NewReader(seed))
	require.NoError(t, err)
	b, err := generateFrom(bytes.NewReader(seed))
	require.NoError(t, err)
	assert.Equal(t, a.ID(), b.ID())
}

// TestLoadOrCreate 测试首次创建、再次加载得到同一身份
func TestLoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "node.pem")

	first, created, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.True(t, created)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	second, created, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID(), second.ID())
}

// TestLoadPrivateKeyPEM_Errors 测试加载错误
func TestLoadPrivateKeyPEM_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadPrivateKeyPEM(filepath.Join(dir, "missing.pem"))
	assert.ErrorIs(t, err, ErrKeyNotFound)

	bad := filepath.Join(dir, "bad.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not pem"), 0600))
	_, err = LoadPrivateKeyPEM(bad)
	assert.ErrorIs(t, err, ErrInvalidPEM)

	_, _, err = LoadOrCreate(bad)
	assert.ErrorIs(t, err, ErrInvalidPEM)
}

// TestModule_KeyFile 测试模块按配置加载身份
func TestModule_KeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.pem")
	cfg := &Config{KeyFile: path}

	var id *Identity
	app := fxtest.New(t, Module(), fx.Supply(cfg), fx.Populate(&id))
	defer app.RequireStart().RequireStop()

	require.NotNil(t, id)
	loaded, err := LoadPrivateKeyPEM(path)
	require.NoError(t, err)
	assert.Equal(t, id.PrivateKey(), loaded)
}

// TestModule_PrivateKey 测试直接注入私钥优先
func TestModule_PrivateKey(t *testing.T) {
	want, err := Generate()
	require.NoError(t, err)

	var id *Identity
	app := fxtest.New(t, Module(), fx.Supply(&Config{PrivateKey: want.PrivateKey()}), fx.Populate(&id))
	defer app.RequireStart().RequireStop()

	assert.Equal(t, want.ID(), id.ID())
}
