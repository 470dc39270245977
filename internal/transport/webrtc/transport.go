// Package webrtc implements the peer-to-peer transport over pion data
// channels, negotiated through the rendezvous signaling relay.
package webrtc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v3"

	"github.com/smpeer/smpeer/internal/logger"
	"github.com/smpeer/smpeer/internal/transport"
)

type Transport struct {
	config      webrtc.Configuration
	signaler    transport.Signaler
	logger      *slog.Logger
	connections map[string]*connection
	incoming    chan transport.Conn
	closeOnce   sync.Once
	mu          sync.RWMutex
}

var _ transport.Transport = (*Transport)(nil)

// New creates a WebRTC transport negotiating sessions through the given
// signaler. It consumes the signaler's Signals channel until that channel
// closes.
func New(signaler transport.Signaler, stunServers []string, log *slog.Logger) *Transport {
	config := DefaultSTUNConfig()
	if len(stunServers) > 0 {
		config.ICEServers = []webrtc.ICEServer{{URLs: stunServers}}
	}
	if log == nil {
		log = logger.NewLogger()
	}

	t := &Transport{
		config:      config,
		signaler:    signaler,
		logger:      log,
		connections: make(map[string]*connection),
		incoming:    make(chan transport.Conn, 16),
	}
	go t.readSignals()
	return t
}

func (t *Transport) Connect(ctx context.Context, peerID string) (transport.Conn, error) {
	pc, err := webrtc.NewPeerConnection(t.config)
	if err != nil {
		return nil, fmt.Errorf("creating peer connection: %w", err)
	}

	conn := newConnection(peerID, pc, t.signaler, true)
	t.track(peerID, conn)

	if err := conn.createDataChannel(); err != nil {
		t.drop(peerID)
		return nil, err
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		t.drop(peerID)
		return nil, fmt.Errorf("creating offer: %w", err)
	}

	// No trickle ICE: wait for gathering so the SDP carries all candidates
	// and a single relayed signal per direction suffices.
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		t.drop(peerID)
		return nil, fmt.Errorf("setting local description: %w", err)
	}

	select {
	case <-gathered:
	case <-ctx.Done():
		t.drop(peerID)
		return nil, ctx.Err()
	}

	if err := t.signaler.SendSignal(ctx, peerID, []byte(pc.LocalDescription().SDP)); err != nil {
		t.drop(peerID)
		return nil, fmt.Errorf("sending offer: %w", err)
	}

	select {
	case <-conn.opened:
		return conn, nil
	case <-ctx.Done():
		t.drop(peerID)
		return nil, ctx.Err()
	}
}

func (t *Transport) Accept() <-chan transport.Conn {
	return t.incoming
}

func (t *Transport) Close() error {
	t.mu.Lock()
	conns := make([]*connection, 0, len(t.connections))
	for _, conn := range t.connections {
		conns = append(conns, conn)
	}
	t.connections = make(map[string]*connection)
	t.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
	t.closeOnce.Do(func() { close(t.incoming) })
	return nil
}

func (t *Transport) readSignals() {
	for signal := range t.signaler.Signals() {
		if err := t.handleSignal(signal); err != nil {
			t.logger.Warn("Failed to handle signal", "peer", signal.PeerID, "error", err)
		}
	}
}

func (t *Transport) handleSignal(signal transport.Signal) error {
	t.mu.RLock()
	conn, exists := t.connections[signal.PeerID]
	t.mu.RUnlock()

	// A finished session's connection may still be tracked if its close
	// raced this signal; a fresh offer from that peer starts a new session.
	if exists && conn.isClosed() {
		exists = false
	}

	if !exists {
		pc, err := webrtc.NewPeerConnection(t.config)
		if err != nil {
			return fmt.Errorf("creating peer connection: %w", err)
		}

		conn = newConnection(signal.PeerID, pc, t.signaler, false)
		conn.onOpen = func() {
			t.incoming <- conn
		}
		t.track(signal.PeerID, conn)
	}

	return conn.handleSignal(signal.Payload)
}

// track registers a connection for the peer and arranges its eviction when
// the connection closes, so a later session with the same peer is not
// shadowed by a dead entry.
func (t *Transport) track(peerID string, conn *connection) {
	conn.setOnClose(func() { t.evict(peerID, conn) })

	t.mu.Lock()
	t.connections[peerID] = conn
	t.mu.Unlock()

	// The connection may have died before the eviction hook was in place.
	if conn.isClosed() {
		t.evict(peerID, conn)
	}
}

func (t *Transport) evict(peerID string, conn *connection) {
	t.mu.Lock()
	if t.connections[peerID] == conn {
		delete(t.connections, peerID)
	}
	t.mu.Unlock()
}

func (t *Transport) drop(peerID string) {
	t.mu.Lock()
	conn, exists := t.connections[peerID]
	delete(t.connections, peerID)
	t.mu.Unlock()

	if exists {
		_ = conn.Close()
	}
}
