package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/smpeer/smpeer/internal/smp"
	"github.com/smpeer/smpeer/internal/transport"
)

// session is one run of the protocol against one remote identity. It
// exclusively owns its engine; only its bridge goroutine (plus the
// initiator's first transit, which happens before the bridge starts)
// touches it.
type session struct {
	remoteID string
	engine   smp.Engine
	conn     transport.Conn

	done   chan struct{}
	once   sync.Once
	result bool
}

func newSession(remoteID string, engine smp.Engine, conn transport.Conn) *session {
	return &session{
		remoteID: remoteID,
		engine:   engine,
		conn:     conn,
		done:     make(chan struct{}),
	}
}

func (s *session) finish(result bool) {
	s.once.Do(func() {
		s.result = result
		close(s.done)
	})
}

// bridge drains the connection, feeding each frame to the engine in arrival
// order and sending back whatever the engine replies. It exits when the
// engine finishes, the connection dies, or the engine rejects a frame; in
// the latter two cases the session is left unfinished and the waiter's
// timeout ends it.
func (o *Orchestrator) bridge(s *session) {
	for data := range s.conn.Recv() {
		msg, err := o.codec.Decode(data)
		if err != nil {
			o.logger.Warnf("Dropping undecodable frame from %s: %v", s.remoteID, err)
			continue
		}

		reply, err := s.engine.Transit(msg)
		if err != nil {
			o.logger.Warnf("Engine rejected frame from %s, abandoning session: %v", s.remoteID, err)
			return
		}

		if reply != nil {
			out, err := o.codec.Encode(reply)
			if err != nil {
				o.logger.Warnf("Failed to encode reply to %s: %v", s.remoteID, err)
				return
			}
			if err := s.conn.Send(out); err != nil {
				o.logger.Warnf("Failed to send reply to %s: %v", s.remoteID, err)
				return
			}
		}

		if s.engine.Finished() {
			s.finish(s.engine.Result())
			return
		}
	}
}

// await blocks until the session finishes, the timeout elapses, or ctx is
// cancelled. Stopping the timer on the way out keeps the losing branch from
// firing after the race is settled.
func (o *Orchestrator) await(ctx context.Context, s *session) (bool, error) {
	timer := time.NewTimer(o.timeout)
	defer timer.Stop()

	select {
	case <-s.done:
		return s.result, nil
	case <-timer.C:
		return false, errTimeout(s.remoteID, o.timeout)
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
