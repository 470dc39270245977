package rendezvous

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/smpeer/smpeer/internal/logger"
	"github.com/smpeer/smpeer/internal/protocol"
	"github.com/smpeer/smpeer/internal/transport"
)

// ErrNotRegistered is returned by client operations that require a prior
// successful Register call.
var ErrNotRegistered = errors.New("not registered with rendezvous server")

const keepaliveInterval = 5 * time.Second

// Client is one peer's connection to the rendezvous server. It registers an
// identity, relays signaling payloads, and reports disconnects and
// server-side errors through channels.
type Client struct {
	config Config
	logger *slog.Logger

	mu     sync.Mutex
	conn   net.Conn
	stream *protocol.Stream

	signals      chan transport.Signal
	errs         chan string
	disconnected chan struct{}
	discOnce     sync.Once
	closeOnce    sync.Once
}

var _ transport.Signaler = (*Client)(nil)

func NewClient(cfg Config, log *slog.Logger) *Client {
	if log == nil {
		log = logger.NewLoggerAt(logger.LevelFor(cfg.Debug))
	}
	return &Client{
		config:       cfg,
		logger:       log,
		signals:      make(chan transport.Signal, 64),
		errs:         make(chan string, 16),
		disconnected: make(chan struct{}),
	}
}

// Register dials the server and binds this connection to an identity.
// With an empty requestedID the server assigns one. Returns the identity
// the server confirmed.
func (c *Client) Register(ctx context.Context, requestedID string) (string, error) {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", c.config.Addr())
	if err != nil {
		return "", fmt.Errorf("dialing rendezvous server: %w", err)
	}

	if c.config.Secure {
		// The server presents a self-signed certificate; the registration
		// exchange carries no secrets worth authenticating the server for.
		tlsConn := tls.Client(conn, &tls.Config{InsecureSkipVerify: true})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return "", fmt.Errorf("tls handshake: %w", err)
		}
		conn = tlsConn
	}

	stream := protocol.NewStream(conn)

	if err := stream.Send(&protocol.Register{RequestedID: requestedID, Path: c.config.Path}); err != nil {
		_ = conn.Close()
		return "", fmt.Errorf("sending registration: %w", err)
	}

	// Unblock the confirmation read if the context ends first.
	recvDone := make(chan struct{})
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		select {
		case <-ctx.Done():
			_ = conn.SetReadDeadline(time.Now())
		case <-recvDone:
		}
	}()

	msg, err := stream.Receive()
	close(recvDone)
	<-watchDone
	if err != nil {
		_ = conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("awaiting registration confirmation: %w", ctxErr)
		}
		return "", fmt.Errorf("awaiting registration confirmation: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	switch m := msg.(type) {
	case *protocol.Registered:
		c.mu.Lock()
		c.conn = conn
		c.stream = stream
		c.mu.Unlock()

		go c.readLoop(stream)
		go c.keepalive(stream)

		c.logger.Info("Registered with rendezvous server", "id", m.ID)
		return m.ID, nil

	case *protocol.Error:
		_ = conn.Close()
		return "", fmt.Errorf("registration rejected: %s: %s", m.Code, m.Message)

	default:
		_ = conn.Close()
		return "", fmt.Errorf("unexpected registration reply: %s", msg.Type())
	}
}

// SendSignal relays a payload to another registered peer.
func (c *Client) SendSignal(ctx context.Context, peerID string, payload []byte) error {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()

	if stream == nil {
		return ErrNotRegistered
	}
	return stream.Send(&protocol.Signal{TargetID: peerID, Payload: payload})
}

// Signals yields relayed payloads from other peers. The channel is closed
// when the server connection dies.
func (c *Client) Signals() <-chan transport.Signal {
	return c.signals
}

// Errors yields server-reported error messages.
func (c *Client) Errors() <-chan string {
	return c.errs
}

// Disconnected is closed when the server connection is gone, whether by
// Close or by the server going away.
func (c *Client) Disconnected() <-chan struct{} {
	return c.disconnected
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn != nil {
			err = conn.Close()
		} else {
			c.markDisconnected()
		}
	})
	return err
}

func (c *Client) readLoop(stream *protocol.Stream) {
	defer c.markDisconnected()

	for {
		msg, err := stream.Receive()
		if err != nil {
			c.logger.Debug("Rendezvous connection closed", "error", err)
			return
		}

		switch m := msg.(type) {
		case *protocol.Signal:
			select {
			case c.signals <- transport.Signal{PeerID: m.SourceID, Payload: m.Payload}:
			default:
				c.logger.Warn("Dropping signal, buffer full", "from", m.SourceID)
			}

		case *protocol.Pong:

		case *protocol.Error:
			text := fmt.Sprintf("%s: %s", m.Code, m.Message)
			select {
			case c.errs <- text:
			default:
			}

		default:
			c.logger.Warn("Unhandled message from server", "type", msg.Type().String())
		}
	}
}

func (c *Client) keepalive(stream *protocol.Stream) {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.disconnected:
			return
		case <-ticker.C:
			if err := stream.Send(&protocol.Ping{}); err != nil {
				return
			}
		}
	}
}

func (c *Client) markDisconnected() {
	c.discOnce.Do(func() {
		close(c.disconnected)
		close(c.signals)
	})
}
