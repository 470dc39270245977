package transport

import (
	"context"
	"fmt"
	"sync"
)

const memoryRecvBuffer = 256

// MemoryNetwork connects MemoryTransports in-process. It stands in for the
// real peer-to-peer layer in tests and keeps the same semantics: ordered
// frame delivery per connection, closed Recv channels on disconnect.
type MemoryNetwork struct {
	mu         sync.Mutex
	transports map[string]*MemoryTransport
}

func NewMemoryNetwork() *MemoryNetwork {
	return &MemoryNetwork{
		transports: make(map[string]*MemoryTransport),
	}
}

// Join registers a transport under the given peer identity.
func (n *MemoryNetwork) Join(peerID string) *MemoryTransport {
	t := &MemoryTransport{
		id:       peerID,
		network:  n,
		incoming: make(chan Conn, 16),
	}
	n.mu.Lock()
	n.transports[peerID] = t
	n.mu.Unlock()
	return t
}

func (n *MemoryNetwork) lookup(peerID string) *MemoryTransport {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.transports[peerID]
}

func (n *MemoryNetwork) leave(peerID string) {
	n.mu.Lock()
	delete(n.transports, peerID)
	n.mu.Unlock()
}

type MemoryTransport struct {
	id       string
	network  *MemoryNetwork
	incoming chan Conn
	once     sync.Once
}

var _ Transport = (*MemoryTransport)(nil)

func (t *MemoryTransport) Connect(ctx context.Context, peerID string) (Conn, error) {
	remote := t.network.lookup(peerID)
	if remote == nil {
		return nil, fmt.Errorf("peer %s not reachable", peerID)
	}

	local, inbound := newMemoryPipe(peerID, t.id)

	select {
	case remote.incoming <- inbound:
		return local, nil
	case <-ctx.Done():
		_ = local.Close()
		return nil, ctx.Err()
	}
}

func (t *MemoryTransport) Accept() <-chan Conn {
	return t.incoming
}

func (t *MemoryTransport) Close() error {
	t.once.Do(func() {
		t.network.leave(t.id)
		close(t.incoming)
	})
	return nil
}

// memoryPipe ties the two ends of an in-process connection together so
// closing either end shuts down both.
type memoryPipe struct {
	once sync.Once
	a, b *memoryConn
}

func (p *memoryPipe) shutdown() {
	p.once.Do(func() {
		p.a.markClosed()
		p.b.markClosed()
	})
}

func newMemoryPipe(peerA, peerB string) (*memoryConn, *memoryConn) {
	a := &memoryConn{peerID: peerA, recv: make(chan []byte, memoryRecvBuffer)}
	b := &memoryConn{peerID: peerB, recv: make(chan []byte, memoryRecvBuffer)}
	pipe := &memoryPipe{a: a, b: b}
	a.pipe, b.pipe = pipe, pipe
	a.remote, b.remote = b, a
	return a, b
}

type memoryConn struct {
	peerID string
	pipe   *memoryPipe
	remote *memoryConn

	mu     sync.Mutex
	recv   chan []byte
	closed bool
}

var _ Conn = (*memoryConn)(nil)

func (c *memoryConn) PeerID() string {
	return c.peerID
}

func (c *memoryConn) Send(data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	return c.remote.deliver(cp)
}

func (c *memoryConn) Recv() <-chan []byte {
	return c.recv
}

func (c *memoryConn) Close() error {
	c.pipe.shutdown()
	return nil
}

func (c *memoryConn) deliver(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.recv <- data:
		return nil
	default:
		return fmt.Errorf("receive buffer full for peer %s", c.peerID)
	}
}

func (c *memoryConn) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.recv)
	}
}
