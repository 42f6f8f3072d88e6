package memory

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-meshrouter/internal/core/metrics"
	"github.com/dep2p/go-meshrouter/internal/core/transport"
	"github.com/dep2p/go-meshrouter/pkg/types"
)

// TestHub_Deliver 测试按链路投递
func TestHub_Deliver(t *testing.T) {
	bw := metrics.NewBandwidthCounter(clock.NewMock())
	hub := NewHub(bw)
	ctx := context.Background()

	var got []byte
	var gotFrom types.PeerID
	hub.Attach("b", func(_ context.Context, raw []byte, from types.PeerID) error {
		got, gotFrom = raw, from
		return nil
	})

	send := hub.Endpoint("a")
	assert.ErrorIs(t, send.Send(ctx, "c", types.TransportLan, []byte("x")), transport.ErrUnknownPeer)
	assert.ErrorIs(t, send.Send(ctx, "b", types.TransportLan, []byte("x")), transport.ErrUnreachable)

	hub.Connect("a", "b", types.TransportLan, 3*time.Millisecond)
	data := []byte("hello")
	require.NoError(t, send.Send(ctx, "b", types.TransportLan, data))
	assert.Equal(t, []byte("hello"), got)
	assert.Equal(t, types.PeerID("a"), gotFrom)

	// 投递的是副本
	data[0] = 'j'
	assert.Equal(t, []byte("hello"), got)

	// 链路是无向的
	rtt, ok := hub.LinkRTT("b", "a", types.TransportLan)
	require.True(t, ok)
	assert.Equal(t, 3*time.Millisecond, rtt)

	assert.ErrorIs(t, send.Send(ctx, "b", types.TransportBle, data), transport.ErrUnreachable)
	assert.Equal(t, int64(5), bw.Totals().TotalOut)
}

// TestHub_DisconnectDetach 测试断开与移除
func TestHub_DisconnectDetach(t *testing.T) {
	hub := NewHub(nil)
	ctx := context.Background()
	hub.Attach("b", func(context.Context, []byte, types.PeerID) error { return nil })
	hub.Connect("a", "b", types.TransportLan, 0)

	assert.True(t, hub.Disconnect("b", "a", types.TransportLan))
	assert.False(t, hub.Disconnect("b", "a", types.TransportLan))
	assert.ErrorIs(t, hub.Endpoint("a").Send(ctx, "b", types.TransportLan, nil), transport.ErrUnreachable)

	hub.Connect("a", "b", types.TransportLan, 0)
	hub.Detach("b")
	assert.ErrorIs(t, hub.Endpoint("a").Send(ctx, "b", types.TransportLan, nil), transport.ErrUnknownPeer)

	require.NoError(t, hub.Close())
	assert.ErrorIs(t, hub.Endpoint("a").Send(ctx, "b", types.TransportLan, nil), transport.ErrClosed)
}
