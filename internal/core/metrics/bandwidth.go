package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-meshrouter/pkg/types"
)

// Stats 带宽统计快照
type Stats struct {
	TotalIn  int64   `json:"total_in"`
	TotalOut int64   `json:"total_out"`
	RateIn   float64 `json:"rate_in"`
	RateOut  float64 `json:"rate_out"`
}

// counter 单个维度的计数器 + 速率
type counter struct {
	in, out         atomic.Int64
	inRate, outRate *RateMeter
}

func newCounter(clk clock.Clock) *counter {
	return &counter{
		inRate:  NewRateMeter(clk),
		outRate: NewRateMeter(clk),
	}
}

func (c *counter) stats() Stats {
	return Stats{
		TotalIn:  c.in.Load(),
		TotalOut: c.out.Load(),
		RateIn:   c.inRate.Rate(),
		RateOut:  c.outRate.Rate(),
	}
}

// ============================================================================
//                              BandwidthCounter
// ============================================================================

// BandwidthCounter 带宽计数器
//
// 跟踪本节点按传输模块收发的字节数。
type BandwidthCounter struct {
	clock clock.Clock
	total *counter

	mu          sync.RWMutex
	byTransport map[types.TransportModule]*counter
}

// NewBandwidthCounter 创建带宽计数器
func NewBandwidthCounter(clk clock.Clock) *BandwidthCounter {
	if clk == nil {
		clk = clock.New()
	}
	return &BandwidthCounter{
		clock:       clk,
		total:       newCounter(clk),
		byTransport: make(map[types.TransportModule]*counter),
	}
}

func (b *BandwidthCounter) transport(t types.TransportModule) *counter {
	b.mu.RLock()
	c := b.byTransport[t]
	b.mu.RUnlock()
	if c != nil {
		return c
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if c = b.byTransport[t]; c == nil {
		c = newCounter(b.clock)
		b.byTransport[t] = c
	}
	return c
}

// LogSent 记录出站字节
func (b *BandwidthCounter) LogSent(t types.TransportModule, size int64) {
	b.total.out.Add(size)
	b.total.outRate.Add(size)
	c := b.transport(t)
	c.out.Add(size)
	c.outRate.Add(size)
}

// LogRecv 记录入站字节
func (b *BandwidthCounter) LogRecv(t types.TransportModule, size int64) {
	b.total.in.Add(size)
	b.total.inRate.Add(size)
	c := b.transport(t)
	c.in.Add(size)
	c.inRate.Add(size)
}

// Totals 返回总带宽统计
func (b *BandwidthCounter) Totals() Stats {
	return b.total.stats()
}

// ByTransport 返回各传输的带宽统计
func (b *BandwidthCounter) ByTransport() map[string]Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]Stats, len(b.byTransport))
	for t, c := range b.byTransport {
		out[t.String()] = c.stats()
	}
	return out
}
