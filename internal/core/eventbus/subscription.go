package eventbus

import (
	"reflect"
	"sync"
	"sync/atomic"

	pkgif "github.com/dep2p/go-meshrouter/pkg/interfaces"
)

// ============================================================================
//                              Subscription
// ============================================================================

// Subscription 事件订阅
type Subscription struct {
	bus       *Bus
	typ       reflect.Type
	out       chan any
	closeOnce sync.Once
}

var _ pkgif.Subscription = (*Subscription)(nil)

// Out 返回事件通道
func (s *Subscription) Out() <-chan any {
	return s.out
}

// Close 取消订阅
//
// 先从 topic 摘除（此后不会再有写入），再关闭通道。
// 通道中残留的事件仍可被消费者读完。
func (s *Subscription) Close() error {
	s.bus.removeSub(s)
	s.closeOnce.Do(func() { close(s.out) })
	return nil
}

// ============================================================================
//                              Emitter
// ============================================================================

// Emitter 事件发射器
type Emitter struct {
	bus       *Bus
	topic     *topic
	closed    atomic.Bool
	closeOnce sync.Once
}

var _ pkgif.Emitter = (*Emitter)(nil)

// Emit 发射事件
//
// 事件必须是发射器对应的类型（值而非指针）。
func (e *Emitter) Emit(event any) error {
	if e.closed.Load() {
		return ErrEmitterClosed
	}
	if event == nil || reflect.TypeOf(event) != e.topic.typ {
		return ErrWrongEventType
	}
	e.topic.emit(event)
	return nil
}

// Close 关闭发射器
func (e *Emitter) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		e.topic.mu.Lock()
		e.topic.emitters--
		e.topic.mu.Unlock()
	})
	return nil
}
