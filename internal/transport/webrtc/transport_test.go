package webrtc

import (
	"context"
	"log/slog"
	"testing"

	"github.com/pion/webrtc/v3"

	"github.com/smpeer/smpeer/internal/logger"
	"github.com/smpeer/smpeer/internal/transport"
)

type stubSignaler struct {
	signals chan transport.Signal
}

func newStubSignaler() *stubSignaler {
	return &stubSignaler{signals: make(chan transport.Signal)}
}

func (s *stubSignaler) SendSignal(ctx context.Context, peerID string, payload []byte) error {
	return nil
}

func (s *stubSignaler) Signals() <-chan transport.Signal {
	return s.signals
}

func newTestTransport(t *testing.T) *Transport {
	t.Helper()

	tr := New(newStubSignaler(), nil, logger.NewLoggerAt(slog.LevelError))
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func (t *Transport) tracked(peerID string) *connection {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connections[peerID]
}

func TestClosedConnectionEvicted(t *testing.T) {
	tr := newTestTransport(t)

	pc, err := webrtc.NewPeerConnection(tr.config)
	if err != nil {
		t.Fatalf("NewPeerConnection failed: %v", err)
	}
	conn := newConnection("bob", pc, tr.signaler, true)
	tr.track("bob", conn)

	if tr.tracked("bob") != conn {
		t.Fatal("connection not tracked after track")
	}

	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if tr.tracked("bob") != nil {
		t.Error("closed connection still tracked; a new session with the same peer would be shadowed")
	}
}

func TestTrackEvictsAlreadyClosedConnection(t *testing.T) {
	tr := newTestTransport(t)

	pc, err := webrtc.NewPeerConnection(tr.config)
	if err != nil {
		t.Fatalf("NewPeerConnection failed: %v", err)
	}
	conn := newConnection("bob", pc, tr.signaler, true)
	_ = conn.Close()

	tr.track("bob", conn)

	if tr.tracked("bob") != nil {
		t.Error("connection that closed before tracking is still tracked")
	}
}

func TestSignalReplacesStaleClosedConnection(t *testing.T) {
	tr := newTestTransport(t)

	pc, err := webrtc.NewPeerConnection(tr.config)
	if err != nil {
		t.Fatalf("NewPeerConnection failed: %v", err)
	}
	stale := newConnection("bob", pc, tr.signaler, false)

	// Simulate a dead entry whose close hook never fired.
	tr.mu.Lock()
	tr.connections["bob"] = stale
	tr.mu.Unlock()
	stale.closeRecv()

	// The payload is not a valid SDP, so negotiation fails, but a fresh
	// connection must replace the stale one rather than the offer being
	// swallowed by it.
	_ = tr.handleSignal(transport.Signal{PeerID: "bob", Payload: []byte("not an offer")})

	got := tr.tracked("bob")
	if got == stale {
		t.Error("stale closed connection still handles signals for the peer")
	}
	if got == nil {
		t.Error("expected a fresh connection to be tracked for the peer")
	}
}
