package badger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-meshrouter/internal/core/storage/engine"
)

func newTestEngine(t *testing.T, inMemory bool) *Engine {
	t.Helper()
	cfg := engine.DefaultConfig(t.TempDir())
	cfg.InMemory = inMemory
	e, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, e.Start())
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// TestEngine_Basic 测试基础读写
func TestEngine_Basic(t *testing.T) {
	for _, inMemory := range []bool{true, false} {
		e := newTestEngine(t, inMemory)

		require.NoError(t, e.Put([]byte("k"), []byte("v")))
		v, err := e.Get([]byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), v)

		ok, err := e.Has([]byte("k"))
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, e.Delete([]byte("k")))
		_, err = e.Get([]byte("k"))
		assert.ErrorIs(t, err, engine.ErrNotFound)

		ok, err = e.Has([]byte("k"))
		require.NoError(t, err)
		assert.False(t, ok)

		assert.ErrorIs(t, e.Put(nil, []byte("v")), engine.ErrEmptyKey)
		assert.NoError(t, e.Sync())
	}
}

// TestEngine_BatchAndIterator 测试批量写入与前缀迭代
func TestEngine_BatchAndIterator(t *testing.T) {
	e := newTestEngine(t, true)

	b := e.NewBatch()
	b.Put([]byte("u/1"), []byte("a"))
	b.Put([]byte("u/2"), []byte("b"))
	b.Put([]byte("x/1"), []byte("c"))
	assert.Equal(t, 3, b.Size())
	require.NoError(t, b.Write())
	assert.ErrorIs(t, b.Write(), engine.ErrBatchClosed)

	it := e.NewPrefixIterator([]byte("u/"))
	defer it.Close()

	var keys []string
	for it.First(); it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
		assert.NotNil(t, it.Value())
	}
	require.NoError(t, it.Error())
	assert.Equal(t, []string{"u/1", "u/2"}, keys)
}

// TestEngine_Closed 测试关闭后的操作
func TestEngine_Closed(t *testing.T) {
	cfg := engine.DefaultConfig("")
	cfg.InMemory = true
	e, err := New(cfg)
	require.NoError(t, err)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err = e.Get([]byte("k"))
	assert.ErrorIs(t, err, engine.ErrClosed)
	assert.ErrorIs(t, e.Start(), engine.ErrClosed)
}

// TestNew_InvalidConfig 测试非法配置
func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, engine.ErrInvalidConfig)

	_, err = New(engine.DefaultConfig(""))
	assert.ErrorIs(t, err, engine.ErrInvalidConfig)
}
