package kv

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-meshrouter/internal/core/storage/engine"
	"github.com/dep2p/go-meshrouter/internal/core/storage/engine/badger"
)

func newEngine(t *testing.T) engine.Engine {
	t.Helper()
	cfg := engine.DefaultConfig("")
	cfg.InMemory = true
	eng, err := badger.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

type record struct {
	Name string `json:"name"`
	TS   int64  `json:"ts"`
}

func scanAll(t *testing.T, s *Store) map[string]string {
	t.Helper()
	out := make(map[string]string)
	require.NoError(t, s.Scan(func(key, value []byte) bool {
		out[string(key)] = string(value)
		return true
	}))
	return out
}

// TestStore_PrefixIsolation 测试前缀隔离
func TestStore_PrefixIsolation(t *testing.T) {
	eng := newEngine(t)
	users := New(eng, []byte("u/"))
	other := New(eng, []byte("x/"))

	b := users.NewBatch()
	b.Put([]byte("a"), []byte("1"))
	require.NoError(t, b.Write())
	b = other.NewBatch()
	b.Put([]byte("a"), []byte("2"))
	require.NoError(t, b.Write())

	assert.Equal(t, map[string]string{"a": "1"}, scanAll(t, users))

	raw, err := eng.Get([]byte("x/a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), raw)

	b = users.NewBatch()
	b.Delete([]byte("a"))
	require.NoError(t, b.Write())
	assert.Empty(t, scanAll(t, users))
	assert.Len(t, scanAll(t, other), 1)
}

// TestStore_BatchAndScan 测试批量写入与遍历
func TestStore_BatchAndScan(t *testing.T) {
	eng := newEngine(t)
	s := New(eng, []byte("u/"))
	require.NoError(t, eng.Put([]byte("v/zzz"), []byte("outside")))

	b := s.NewBatch()
	require.NoError(t, b.PutJSON([]byte("1"), record{Name: "a"}))
	require.NoError(t, b.PutJSON([]byte("2"), record{Name: "b", TS: 7}))
	b.Delete([]byte("3"))
	assert.Equal(t, 3, b.Size())
	require.NoError(t, b.Write())

	var keys []string
	var last record
	require.NoError(t, s.Scan(func(key, value []byte) bool {
		keys = append(keys, string(key))
		require.NoError(t, json.Unmarshal(value, &last))
		return true
	}))
	assert.Equal(t, []string{"1", "2"}, keys)
	assert.Equal(t, record{Name: "b", TS: 7}, last)

	keys = nil
	require.NoError(t, s.Scan(func(key, _ []byte) bool {
		keys = append(keys, string(key))
		return false
	}))
	assert.Len(t, keys, 1)
	assert.NoError(t, s.Sync())
}

// TestBatch_Cancel 测试放弃的批量操作不写入
func TestBatch_Cancel(t *testing.T) {
	s := New(newEngine(t), []byte("u/"))

	b := s.NewBatch()
	b.Put([]byte("a"), []byte("1"))
	b.Cancel()
	assert.Empty(t, scanAll(t, s))
}
