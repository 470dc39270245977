// Package orchestrator coordinates equality-comparison sessions: it
// registers an identity with the rendezvous service, initiates outbound
// sessions, accepts inbound ones, drives frames through per-session
// protocol engines, and bounds every session with a timeout.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smpeer/smpeer/internal/logger"
	"github.com/smpeer/smpeer/internal/rendezvous"
	"github.com/smpeer/smpeer/internal/smp"
	"github.com/smpeer/smpeer/internal/transport"
	"github.com/smpeer/smpeer/internal/transport/webrtc"
)

type regState uint8

const (
	stateUnregistered regState = iota
	stateRegistering
	stateRegistered
	stateDisconnected
)

// Orchestrator runs comparison sessions for one local secret and one
// identity. One outbound session (per RunSMP call) and any number of
// inbound sessions may be in flight concurrently; each owns its engine and
// connection exclusively.
type Orchestrator struct {
	secret      string
	requestedID string
	timeout     time.Duration
	newEngine   smp.Factory
	codec       smp.Codec
	registrar   Registrar
	transport   transport.Transport
	logger      *logrus.Logger
	events      *dispatcher

	mu    sync.Mutex
	state regState
	id    string
}

// New builds an orchestrator for the given secret. See Options for the
// required and defaulted collaborators.
func New(secret string, opts Options) (*Orchestrator, error) {
	if opts.Engine == nil {
		return nil, errors.New("orchestrator: Options.Engine is required")
	}
	if opts.Codec == nil {
		return nil, errors.New("orchestrator: Options.Codec is required")
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewLogrus(opts.Config.Debug)
	}

	// The rendezvous client and the WebRTC transport default their own
	// slog loggers from Config.Debug.
	registrar := opts.Registrar
	if registrar == nil {
		registrar = rendezvous.NewClient(opts.Config, nil)
	}

	tr := opts.Transport
	if tr == nil {
		signaler, ok := registrar.(transport.Signaler)
		if !ok {
			return nil, errors.New("orchestrator: Registrar does not relay signals; Options.Transport is required")
		}
		tr = webrtc.New(signaler, opts.STUNServers, logger.NewLoggerAt(logger.LevelFor(opts.Config.Debug)))
	}

	return &Orchestrator{
		secret:      secret,
		requestedID: opts.LocalID,
		timeout:     timeout,
		newEngine:   opts.Engine,
		codec:       opts.Codec,
		registrar:   registrar,
		transport:   tr,
		logger:      log,
		events:      newDispatcher(),
	}, nil
}

// On subscribes a handler to an event kind. Handlers for one kind are
// invoked in subscription order.
func (o *Orchestrator) On(kind EventKind, h Handler) error {
	return o.events.on(kind, h)
}

// ConnectToPeerServer registers with the rendezvous service. It fails with
// a SERVER_FAULT error when the service confirms an identity different from
// the requested one. On success it starts accepting inbound sessions and
// emits the server-connected event.
func (o *Orchestrator) ConnectToPeerServer(ctx context.Context) error {
	o.mu.Lock()
	if o.state != stateUnregistered {
		o.mu.Unlock()
		return fmt.Errorf("registration already attempted")
	}
	o.state = stateRegistering
	o.mu.Unlock()

	id, err := o.registrar.Register(ctx, o.requestedID)
	if err != nil {
		o.setState(stateUnregistered)
		return fmt.Errorf("registering with rendezvous server: %w", err)
	}

	if o.requestedID != "" && id != o.requestedID {
		_ = o.registrar.Close()
		o.setState(stateUnregistered)
		return errServerFault(id, o.requestedID)
	}

	o.mu.Lock()
	o.id = id
	o.state = stateRegistered
	o.mu.Unlock()

	go o.watchRegistrar()
	go o.acceptLoop()

	o.logger.Infof("Connected to peer server as %s", id)
	o.events.emit(Event{Kind: EventServerConnected})
	return nil
}

// ID returns the identity confirmed at registration.
func (o *Orchestrator) ID() (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.id == "" {
		return "", errServerUnconnected("id")
	}
	return o.id, nil
}

// Disconnect closes the rendezvous connection. The server-disconnected
// event is delivered asynchronously. Disconnection is terminal: the
// orchestrator does not support re-registration. Disconnecting an already
// disconnected orchestrator is a no-op.
func (o *Orchestrator) Disconnect() error {
	o.mu.Lock()
	switch o.state {
	case stateRegistered:
		o.state = stateDisconnected
		o.mu.Unlock()
		return o.registrar.Close()
	case stateDisconnected:
		o.mu.Unlock()
		return nil
	default:
		o.mu.Unlock()
		return errServerUnconnected("disconnect")
	}
}

// RunSMP opens a session to the remote identity, runs the comparison
// protocol to completion, and returns whether the secrets compared equal.
// It fails with SERVER_UNCONNECTED before registration and TIMEOUT when the
// session does not finish within the configured bound. Failed sessions are
// not retried.
func (o *Orchestrator) RunSMP(ctx context.Context, remoteID string) (bool, error) {
	if !o.isRegistered() {
		return false, errServerUnconnected("runSMP")
	}

	conn, err := o.transport.Connect(ctx, remoteID)
	if err != nil {
		return false, fmt.Errorf("connecting to %s: %w", remoteID, err)
	}
	defer func() { _ = conn.Close() }()

	s := newSession(remoteID, o.newEngine(o.secret), conn)

	first, err := s.engine.Transit(nil)
	if err != nil {
		return false, fmt.Errorf("engine failed to produce first message: %w", err)
	}
	if first == nil {
		// The engine contract requires a first message; nil here means the
		// engine implementation is broken, not that the session failed.
		return false, fmt.Errorf("engine produced no first message for %s", remoteID)
	}

	data, err := o.codec.Encode(first)
	if err != nil {
		return false, fmt.Errorf("encoding first message: %w", err)
	}
	if err := s.conn.Send(data); err != nil {
		return false, fmt.Errorf("sending first message: %w", err)
	}

	if s.engine.Finished() {
		s.finish(s.engine.Result())
	}
	go o.bridge(s)

	o.logger.Debugf("Outbound session started with %s", remoteID)
	return o.await(ctx, s)
}

func (o *Orchestrator) acceptLoop() {
	for conn := range o.transport.Accept() {
		go o.handleInbound(conn)
	}
}

// handleInbound runs one accepted session to completion. Inbound failures
// have no caller to report to: they are logged, published on the error
// event, and the session is dropped.
func (o *Orchestrator) handleInbound(conn transport.Conn) {
	remoteID := conn.PeerID()
	o.logger.Infof("Accepted comparison session from %s", remoteID)

	s := newSession(remoteID, o.newEngine(o.secret), conn)
	go o.bridge(s)

	result, err := o.await(context.Background(), s)
	_ = conn.Close()

	if err != nil {
		o.logger.Warnf("Inbound session with %s failed: %v", remoteID, err)
		o.events.emit(Event{
			Kind:    EventError,
			Message: fmt.Sprintf("session with %s: %v", remoteID, err),
		})
		return
	}

	o.logger.Infof("Inbound session with %s finished: equal=%v", remoteID, result)
	o.events.emit(Event{
		Kind:     EventSessionFinished,
		RemoteID: remoteID,
		Result:   result,
	})
}

// watchRegistrar forwards rendezvous-level notifications to subscribers.
func (o *Orchestrator) watchRegistrar() {
	for {
		select {
		case msg := <-o.registrar.Errors():
			o.events.emit(Event{Kind: EventError, Message: msg})

		case <-o.registrar.Disconnected():
			o.setState(stateDisconnected)
			o.logger.Info("Disconnected from peer server")
			o.events.emit(Event{Kind: EventServerDisconnected})
			return
		}
	}
}

func (o *Orchestrator) isRegistered() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == stateRegistered
}

func (o *Orchestrator) setState(s regState) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}
