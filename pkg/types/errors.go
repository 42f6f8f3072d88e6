package types

import (
	"errors"
	"fmt"
)

// 公共错误定义
var (
	// ErrDecode 线上输入格式错误（可恢复：记录日志后丢弃消息）
	ErrDecode = errors.New("decode error")

	// ErrInvalidEncoding 编码非法（Base58 或线上字节无法解析）
	ErrInvalidEncoding = fmt.Errorf("%w: invalid encoding", ErrDecode)

	// ErrInvalidIdentity 无法从用户或网络输入解析 PeerID / Q8ID
	ErrInvalidIdentity = errors.New("invalid identity")

	// ErrNotFound 查询未命中（正常结果，不作为错误记录）
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable 存储尚未初始化（启动竞态，可重试）
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidTransport 传输模块非法（包括 TransportNone 作为键）
	ErrInvalidTransport = errors.New("invalid transport module")
)
