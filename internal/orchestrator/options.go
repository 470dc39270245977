package orchestrator

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smpeer/smpeer/internal/rendezvous"
	"github.com/smpeer/smpeer/internal/smp"
	"github.com/smpeer/smpeer/internal/transport"
)

// DefaultTimeout bounds how long a session may run before it is abandoned.
const DefaultTimeout = 30 * time.Second

// Registrar is the orchestrator's view of the discovery service: bind an
// identity, report server-side errors and the eventual disconnect.
// rendezvous.Client is the production implementation.
type Registrar interface {
	Register(ctx context.Context, requestedID string) (string, error)
	Errors() <-chan string
	Disconnected() <-chan struct{}
	Close() error
}

// Options configures an Orchestrator. Engine and Codec are required; the
// rest defaults to the production stack (rendezvous client + WebRTC
// transport).
type Options struct {
	// LocalID is the identity to request at registration. Empty means the
	// server assigns one.
	LocalID string

	// Config locates the rendezvous service. Used by the default Registrar
	// and to derive the default log verbosity.
	Config rendezvous.Config

	// Timeout bounds each session. Zero means DefaultTimeout.
	Timeout time.Duration

	// Engine builds a fresh protocol engine per session.
	Engine smp.Factory

	// Codec frames engine messages for the transport.
	Codec smp.Codec

	// Registrar overrides the rendezvous client, mainly for tests.
	Registrar Registrar

	// Transport overrides the WebRTC transport, mainly for tests. When nil
	// the Registrar must also implement transport.Signaler.
	Transport transport.Transport

	// STUNServers overrides the default STUN set of the WebRTC transport.
	STUNServers []string

	Logger *logrus.Logger
}
