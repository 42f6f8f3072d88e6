package eventbus

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-meshrouter/internal/util/logger"
	pkgif "github.com/dep2p/go-meshrouter/pkg/interfaces"
)

var log = logger.Logger("core/eventbus")

// defaultBuffer 订阅默认缓冲区大小
const defaultBuffer = 16

// ============================================================================
//                              Bus 实现
// ============================================================================

// Bus 事件总线
type Bus struct {
	mu     sync.RWMutex
	topics map[reflect.Type]*topic
	closed bool
}

// topic 单个事件类型的订阅者集合
type topic struct {
	mu        sync.Mutex
	typ       reflect.Type
	sinks     []*Subscription
	emitters  int
	stateful  bool
	last      any
	hasLast   bool
	dropCount atomic.Int64
}

// NewBus 创建事件总线
func NewBus() *Bus {
	return &Bus{
		topics: make(map[reflect.Type]*topic),
	}
}

var _ pkgif.EventBus = (*Bus)(nil)

// Subscribe 订阅事件
func (b *Bus) Subscribe(eventType any, opts ...pkgif.SubscriptionOpt) (pkgif.Subscription, error) {
	typ, err := elemType(eventType)
	if err != nil {
		return nil, err
	}

	settings := pkgif.SubscriptionSettings{Buffer: defaultBuffer}
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.Buffer < 0 {
		settings.Buffer = 0
	}

	sub := &Subscription{
		bus: b,
		typ: typ,
		out: make(chan any, settings.Buffer),
	}

	t, err := b.topicFor(typ)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.sinks = append(t.sinks, sub)
	if t.stateful && t.hasLast {
		select {
		case sub.out <- t.last:
		default:
		}
	}
	t.mu.Unlock()

	return sub, nil
}

// Emitter 获取发射器
func (b *Bus) Emitter(eventType any, opts ...pkgif.EmitterOpt) (pkgif.Emitter, error) {
	typ, err := elemType(eventType)
	if err != nil {
		return nil, err
	}

	var settings pkgif.EmitterSettings
	for _, opt := range opts {
		opt(&settings)
	}

	t, err := b.topicFor(typ)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.emitters++
	if settings.Stateful {
		t.stateful = true
	}
	t.mu.Unlock()

	return &Emitter{bus: b, topic: t}, nil
}

// Close 关闭总线并关闭所有订阅的通道
//
// 订阅者的 range 循环会因此退出。重复调用无副作用。
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	topics := b.topics
	b.topics = make(map[reflect.Type]*topic)
	b.mu.Unlock()

	for _, t := range topics {
		t.mu.Lock()
		sinks := t.sinks
		t.sinks = nil
		t.mu.Unlock()

		for _, sub := range sinks {
			sub.closeOnce.Do(func() { close(sub.out) })
		}
	}
	return nil
}

// ============================================================================
//                              内部方法
// ============================================================================

// elemType 校验并返回指针所指的事件类型
func elemType(eventType any) (reflect.Type, error) {
	if eventType == nil {
		return nil, ErrInvalidEventType
	}
	typ := reflect.TypeOf(eventType)
	if typ.Kind() != reflect.Ptr {
		return nil, ErrNonPointerType
	}
	return typ.Elem(), nil
}

// topicFor 获取或创建事件类型对应的 topic
func (b *Bus) topicFor(typ reflect.Type) (*topic, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	t, ok := b.topics[typ]
	if !ok {
		t = &topic{typ: typ}
		b.topics[typ] = t
	}
	return t, nil
}

// removeSub 移除订阅，返回是否找到
func (b *Bus) removeSub(sub *Subscription) bool {
	b.mu.RLock()
	t, ok := b.topics[sub.typ]
	b.mu.RUnlock()
	if !ok {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for i, s := range t.sinks {
		if s == sub {
			t.sinks = append(t.sinks[:i], t.sinks[i+1:]...)
			return true
		}
	}
	return false
}

// emit 向所有订阅者投递事件，缓冲区满则丢弃
func (t *topic) emit(event any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stateful {
		t.last = event
		t.hasLast = true
	}

	for _, sub := range t.sinks {
		select {
		case sub.out <- event:
		default:
			dropped := t.dropCount.Add(1)
			if dropped%100 == 1 {
				log.Warn("慢消费者，事件被丢弃",
					"type", t.typ.String(),
					"dropped", dropped)
			}
		}
	}
}
