package neighbour

import (
	"fmt"

	"github.com/dep2p/go-meshrouter/pkg/types"
)

var (
	// ErrInvalidTransport TransportNone 或未知传输不能作为键
	ErrInvalidTransport = fmt.Errorf("neighbour: %w", types.ErrInvalidTransport)

	// ErrEmptyPeer 空 PeerID
	ErrEmptyPeer = fmt.Errorf("neighbour: %w", types.ErrInvalidIdentity)
)
