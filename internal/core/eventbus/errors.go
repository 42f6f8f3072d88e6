package eventbus

import "errors"

var (
	// ErrClosed 事件总线已关闭
	ErrClosed = errors.New("eventbus: closed")

	// ErrInvalidEventType 无效的事件类型
	ErrInvalidEventType = errors.New("eventbus: invalid event type")

	// ErrNonPointerType 订阅/发射器需要传入事件类型的指针
	ErrNonPointerType = errors.New("eventbus: event type must be a pointer")

	// ErrWrongEventType 发射的事件与发射器类型不匹配
	ErrWrongEventType = errors.New("eventbus: emitted event has wrong type")

	// ErrEmitterClosed 发射器已关闭
	ErrEmitterClosed = errors.New("eventbus: emitter closed")
)
