// Package rendezvous implements the discovery service peers register with,
// and the client peers use to register and relay signaling.
package rendezvous

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/smpeer/smpeer/internal/logger"
	"github.com/smpeer/smpeer/internal/protocol"
	"github.com/smpeer/smpeer/internal/rendezvous/history"
)

// ServerConfig configures a rendezvous server.
type ServerConfig struct {
	Addr   string
	Path   string
	Secure bool
	Logger *slog.Logger
	// History, when set, records registrations and disconnects.
	History *history.Store
}

type Server struct {
	config   ServerConfig
	logger   *slog.Logger
	listener net.Listener

	mu    sync.Mutex
	peers map[string]*peerConn
}

type peerConn struct {
	id     string
	stream *protocol.Stream
	conn   net.Conn
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Path == "" {
		cfg.Path = "/"
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewLogger()
	}

	var listener net.Listener
	var err error
	if cfg.Secure {
		tlsConfig, tlsErr := ServerTLSConfig()
		if tlsErr != nil {
			return nil, tlsErr
		}
		listener, err = tls.Listen("tcp", cfg.Addr, tlsConfig)
	} else {
		listener, err = net.Listen("tcp", cfg.Addr)
	}
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", cfg.Addr, err)
	}

	return &Server{
		config:   cfg,
		logger:   log,
		listener: listener,
		peers:    make(map[string]*peerConn),
	}, nil
}

func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down rendezvous server")
	err := s.listener.Close()

	s.mu.Lock()
	for _, pc := range s.peers {
		_ = pc.conn.Close()
	}
	s.peers = make(map[string]*peerConn)
	s.mu.Unlock()

	return err
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Rendezvous server started", "addr", s.Addr(), "path", s.config.Path)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("Failed to accept connection", "error", err)
			continue
		}

		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()
	defer func() { _ = conn.Close() }()

	stream := protocol.NewStream(conn)

	msg, err := stream.Receive()
	if err != nil {
		s.logger.Debug("Connection dropped before registering", "remote", remoteAddr)
		return
	}

	reg, ok := msg.(*protocol.Register)
	if !ok {
		s.logger.Warn("First message was not a registration", "remote", remoteAddr, "type", msg.Type().String())
		_ = stream.Send(&protocol.Error{Code: protocol.ErrInvalidMsg, Message: "expected REGISTER"})
		return
	}

	if reg.Path != s.config.Path {
		s.logger.Warn("Registration path mismatch", "remote", remoteAddr, "path", reg.Path)
		_ = stream.Send(&protocol.Error{
			Code:    protocol.ErrPathMismatch,
			Message: fmt.Sprintf("unknown path %q", reg.Path),
		})
		return
	}

	id := reg.RequestedID
	if id == "" {
		id, err = newPeerID()
		if err != nil {
			s.logger.Error("Failed to generate peer id", "error", err)
			_ = stream.Send(&protocol.Error{Code: protocol.ErrInternal, Message: "id generation failed"})
			return
		}
	}

	pc := &peerConn{id: id, stream: stream, conn: conn}
	if !s.addPeer(pc) {
		s.logger.Warn("Peer id already registered", "id", id, "remote", remoteAddr)
		_ = stream.Send(&protocol.Error{
			Code:    protocol.ErrIDTaken,
			Message: fmt.Sprintf("id %q is taken", id),
		})
		return
	}
	defer s.removePeer(id)

	var recordID uint
	if s.config.History != nil {
		recordID, err = s.config.History.RecordRegistration(id)
		if err != nil {
			s.logger.Warn("Failed to record registration", "id", id, "error", err)
		}
		defer func() {
			if err := s.config.History.RecordDisconnect(recordID); err != nil {
				s.logger.Warn("Failed to record disconnect", "id", id, "error", err)
			}
		}()
	}

	if err := stream.Send(&protocol.Registered{ID: id}); err != nil {
		s.logger.Warn("Failed to confirm registration", "id", id, "error", err)
		return
	}

	s.logger.Info("Peer registered", "id", id, "remote", remoteAddr)
	defer s.logger.Info("Peer disconnected", "id", id)

	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := stream.Receive()
		if err != nil {
			return
		}

		s.handleMessage(pc, msg)
	}
}

func (s *Server) handleMessage(pc *peerConn, msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.Ping:
		if err := pc.stream.Send(&protocol.Pong{}); err != nil {
			s.logger.Debug("Failed to send Pong", "id", pc.id, "error", err)
		}

	case *protocol.Signal:
		target := s.getPeer(m.TargetID)
		if target == nil {
			s.logger.Debug("Signal for unknown peer", "from", pc.id, "to", m.TargetID)
			_ = pc.stream.Send(&protocol.Error{
				Code:    protocol.ErrPeerNotFound,
				Message: fmt.Sprintf("peer %q is not registered", m.TargetID),
			})
			return
		}
		relayed := &protocol.Signal{
			TargetID: m.TargetID,
			SourceID: pc.id,
			Payload:  m.Payload,
		}
		if err := target.stream.Send(relayed); err != nil {
			s.logger.Warn("Failed to relay signal", "from", pc.id, "to", m.TargetID, "error", err)
		}

	default:
		s.logger.Warn("Unhandled message type", "id", pc.id, "type", msg.Type().String())
		_ = pc.stream.Send(&protocol.Error{Code: protocol.ErrInvalidMsg, Message: "unsupported message"})
	}
}

func (s *Server) addPeer(pc *peerConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.peers[pc.id]; taken {
		return false
	}
	s.peers[pc.id] = pc
	return true
}

func (s *Server) removePeer(id string) {
	s.mu.Lock()
	delete(s.peers, id)
	s.mu.Unlock()
}

func (s *Server) getPeer(id string) *peerConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peers[id]
}

func newPeerID() (string, error) {
	raw := make([]byte, protocol.PeerIDSize/2)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
