// Package transport abstracts the peer-to-peer data channels the session
// orchestrator runs protocol frames over.
package transport

import (
	"context"
	"errors"
)

// ErrConnClosed is returned by Send once a connection is closed.
var ErrConnClosed = errors.New("connection closed")

// Transport opens logical connections to peers by identity and surfaces
// inbound connections initiated by remote peers.
type Transport interface {
	// Connect opens a connection to the peer and blocks until the data
	// channel is ready to carry frames.
	Connect(ctx context.Context, peerID string) (Conn, error)

	// Accept yields connections initiated by remote peers. The channel is
	// closed when the transport shuts down.
	Accept() <-chan Conn

	Close() error
}

// Conn is one ordered, bidirectional byte-frame channel to a single peer.
// The Recv channel is closed when the connection dies, whichever side
// closed it.
type Conn interface {
	PeerID() string
	Send(data []byte) error
	Recv() <-chan []byte
	Close() error
}

// Signaler relays opaque signaling payloads between peers through the
// rendezvous service, used by transports that need out-of-band session
// negotiation.
type Signaler interface {
	SendSignal(ctx context.Context, peerID string, payload []byte) error
	Signals() <-chan Signal
}

// Signal is a relayed signaling payload from another peer.
type Signal struct {
	PeerID  string
	Payload []byte
}
