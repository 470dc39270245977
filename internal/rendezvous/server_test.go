package rendezvous

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/smpeer/smpeer/internal/logger"
	"github.com/smpeer/smpeer/internal/protocol"
)

func setupServer(t *testing.T, cfg ServerConfig) *Server {
	t.Helper()

	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewLoggerAt(slog.LevelError)
	}

	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = srv.Start(ctx) }()

	t.Cleanup(func() {
		cancel()
		_ = srv.Shutdown()
	})

	return srv
}

func clientConfig(t *testing.T, srv *Server, secure bool) Config {
	t.Helper()

	host, portStr, err := net.SplitHostPort(srv.Addr())
	if err != nil {
		t.Fatalf("SplitHostPort failed: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("Atoi failed: %v", err)
	}

	return Config{Host: host, Port: port, Path: "/", Secure: secure}
}

func register(t *testing.T, cfg Config, requestedID string) (*Client, string) {
	t.Helper()

	client := NewClient(cfg, logger.NewLoggerAt(slog.LevelError))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id, err := client.Register(ctx, requestedID)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return client, id
}

func TestRegisterAssignedID(t *testing.T) {
	srv := setupServer(t, ServerConfig{})
	_, id := register(t, clientConfig(t, srv, false), "")

	if len(id) != protocol.PeerIDSize {
		t.Errorf("Expected %d-char assigned id, got %q", protocol.PeerIDSize, id)
	}
}

func TestRegisterRequestedID(t *testing.T) {
	srv := setupServer(t, ServerConfig{})
	_, id := register(t, clientConfig(t, srv, false), "alice")

	if id != "alice" {
		t.Errorf("Expected requested id echoed back, got %q", id)
	}
}

func TestRegisterPathMismatch(t *testing.T) {
	srv := setupServer(t, ServerConfig{Path: "/compare"})
	cfg := clientConfig(t, srv, false)
	cfg.Path = "/other"

	client := NewClient(cfg, logger.NewLoggerAt(slog.LevelError))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Register(ctx, "alice")
	if err == nil {
		t.Fatal("Expected registration to fail on path mismatch")
	}
	if !strings.Contains(err.Error(), "PATH_MISMATCH") {
		t.Errorf("Expected PATH_MISMATCH error, got: %v", err)
	}
}

func TestRegisterDuplicateID(t *testing.T) {
	srv := setupServer(t, ServerConfig{})
	cfg := clientConfig(t, srv, false)

	register(t, cfg, "dup")

	client := NewClient(cfg, logger.NewLoggerAt(slog.LevelError))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Register(ctx, "dup")
	if err == nil {
		t.Fatal("Expected second registration with same id to fail")
	}
	if !strings.Contains(err.Error(), "ID_TAKEN") {
		t.Errorf("Expected ID_TAKEN error, got: %v", err)
	}
}

func TestSignalRelay(t *testing.T) {
	srv := setupServer(t, ServerConfig{})
	cfg := clientConfig(t, srv, false)

	alice, _ := register(t, cfg, "alice")
	bob, _ := register(t, cfg, "bob")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload := []byte("session offer")
	if err := alice.SendSignal(ctx, "bob", payload); err != nil {
		t.Fatalf("SendSignal failed: %v", err)
	}

	select {
	case signal := <-bob.Signals():
		if signal.PeerID != "alice" {
			t.Errorf("Expected source id 'alice', got %q", signal.PeerID)
		}
		if !bytes.Equal(signal.Payload, payload) {
			t.Errorf("Payload mismatch: %q", signal.Payload)
		}
	case <-ctx.Done():
		t.Fatal("Timeout waiting for relayed signal")
	}
}

func TestSignalUnknownPeer(t *testing.T) {
	srv := setupServer(t, ServerConfig{})
	alice, _ := register(t, clientConfig(t, srv, false), "alice")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := alice.SendSignal(ctx, "ghost", []byte("hello")); err != nil {
		t.Fatalf("SendSignal failed: %v", err)
	}

	select {
	case msg := <-alice.Errors():
		if !strings.Contains(msg, "PEER_NOT_FOUND") {
			t.Errorf("Expected PEER_NOT_FOUND error, got %q", msg)
		}
	case <-ctx.Done():
		t.Fatal("Timeout waiting for error report")
	}
}

func TestSendSignalBeforeRegister(t *testing.T) {
	client := NewClient(DefaultConfig(), logger.NewLoggerAt(slog.LevelError))

	err := client.SendSignal(context.Background(), "bob", []byte("x"))
	if err != ErrNotRegistered {
		t.Errorf("Expected ErrNotRegistered, got %v", err)
	}
}

func TestClientDisconnectedOnClose(t *testing.T) {
	srv := setupServer(t, ServerConfig{})
	alice, _ := register(t, clientConfig(t, srv, false), "alice")

	if err := alice.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case <-alice.Disconnected():
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for disconnect notification")
	}
}

func TestClientDisconnectedOnServerShutdown(t *testing.T) {
	srv := setupServer(t, ServerConfig{})
	alice, _ := register(t, clientConfig(t, srv, false), "alice")

	_ = srv.Shutdown()

	select {
	case <-alice.Disconnected():
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for disconnect notification")
	}
}

func TestRegistrationFreedAfterDisconnect(t *testing.T) {
	srv := setupServer(t, ServerConfig{})
	cfg := clientConfig(t, srv, false)

	alice, _ := register(t, cfg, "alice")
	_ = alice.Close()

	// The server frees the id when it observes the closed connection.
	deadline := time.Now().Add(2 * time.Second)
	for srv.getPeer("alice") != nil {
		if time.Now().After(deadline) {
			t.Fatal("Registration was not freed after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}

	register(t, cfg, "alice")
}

func TestSecureRegistration(t *testing.T) {
	srv := setupServer(t, ServerConfig{Secure: true})
	_, id := register(t, clientConfig(t, srv, true), "alice")

	if id != "alice" {
		t.Errorf("Expected id 'alice' over TLS, got %q", id)
	}
}
