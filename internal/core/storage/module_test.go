package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-meshrouter/internal/core/storage/engine"
)

// TestModule_Disabled 测试未启用时不创建引擎
func TestModule_Disabled(t *testing.T) {
	var eng engine.Engine
	app := fxtest.New(t, Module(), fx.Populate(&eng))
	defer app.RequireStart().RequireStop()

	assert.Nil(t, eng)
}

// TestModule_Persistent 测试停止后数据仍在磁盘上
func TestModule_Persistent(t *testing.T) {
	cfg := &Config{Enabled: true, DataDir: t.TempDir()}

	var eng engine.Engine
	app := fxtest.New(t, Module(), fx.Supply(cfg), fx.Populate(&eng))
	app.RequireStart()
	require.NotNil(t, eng)
	require.NoError(t, eng.Put([]byte("k"), []byte("v")))
	app.RequireStop()

	_, err := eng.Get([]byte("k"))
	assert.ErrorIs(t, err, engine.ErrClosed)

	reopened, err := NewEngine(*cfg)
	require.NoError(t, err)
	defer reopened.Close()

	v, err := reopened.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}

// TestConfig_Validate 测试配置校验
func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.ErrorIs(t, Config{Enabled: true}.Validate(), engine.ErrInvalidConfig)
	assert.NoError(t, Config{Enabled: true, InMemory: true}.Validate())
}
