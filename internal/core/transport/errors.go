package transport

import "errors"

var (
	// ErrUnknownPeer 目标节点未接入
	ErrUnknownPeer = errors.New("transport: unknown peer")

	// ErrUnreachable 两个节点之间没有该传输的链路
	ErrUnreachable = errors.New("transport: peer unreachable on transport")

	// ErrClosed 传输已关闭
	ErrClosed = errors.New("transport: closed")
)
