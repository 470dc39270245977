package integration

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/smpeer/smpeer/internal/logger"
	"github.com/smpeer/smpeer/internal/orchestrator"
	"github.com/smpeer/smpeer/internal/rendezvous"
	"github.com/smpeer/smpeer/internal/smp/hmaceq"
	"github.com/smpeer/smpeer/internal/transport"
)

// Network is an in-process deployment: a real rendezvous server over TCP,
// real rendezvous clients registering against it, and an in-memory mesh
// standing in for the peer-to-peer transport.
type Network struct {
	server  *rendezvous.Server
	mesh    *transport.MemoryNetwork
	clients []*rendezvous.Client
	cancel  context.CancelFunc
	ctx     context.Context
	t       *testing.T
}

func NewNetwork(t *testing.T) *Network {
	t.Helper()

	log := logger.NewLoggerAt(slog.LevelError)

	srv, err := rendezvous.NewServer(rendezvous.ServerConfig{
		Addr:   "127.0.0.1:0",
		Logger: log,
	})
	if err != nil {
		t.Fatalf("Failed to create rendezvous server: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	go func() {
		_ = srv.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)

	return &Network{
		server: srv,
		mesh:   transport.NewMemoryNetwork(),
		cancel: cancel,
		ctx:    ctx,
		t:      t,
	}
}

func (n *Network) Config() rendezvous.Config {
	n.t.Helper()

	host, portStr, err := net.SplitHostPort(n.server.Addr())
	if err != nil {
		n.t.Fatalf("Failed to parse server address: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		n.t.Fatalf("Failed to parse server port: %v", err)
	}

	return rendezvous.Config{Host: host, Port: port, Path: "/"}
}

// NewOrchestrator builds an orchestrator registering as id (empty for a
// server-assigned identity) and joined to the in-memory mesh under id.
func (n *Network) NewOrchestrator(secret, id string) *orchestrator.Orchestrator {
	n.t.Helper()

	client := rendezvous.NewClient(n.Config(), logger.NewLoggerAt(slog.LevelError))
	n.clients = append(n.clients, client)

	o, err := orchestrator.New(secret, orchestrator.Options{
		LocalID:   id,
		Engine:    hmaceq.NewFactory(),
		Codec:     hmaceq.NewCodec(),
		Registrar: client,
		Transport: n.mesh.Join(id),
		Logger:    logger.NewLogrus(1),
	})
	if err != nil {
		n.t.Fatalf("Failed to create orchestrator: %v", err)
	}
	return o
}

func (n *Network) Context() context.Context {
	return n.ctx
}

func (n *Network) Close() {
	n.cancel()
	for _, c := range n.clients {
		_ = c.Close()
	}
	_ = n.server.Shutdown()
}
