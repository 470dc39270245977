// Package hmaceq implements a deterministic equality-comparison engine used
// by the CLI and the test suite. Both sides derive an HMAC key from their
// secret and exchange MACs over fresh nonces; the MACs match on both sides
// iff the secrets are equal.
//
// This is NOT a zero-knowledge socialist-millionaires protocol: a party
// learns an HMAC of the peer's secret over known nonces. It exists to
// exercise the session machinery with a real multi-round handshake.
package hmaceq

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/smpeer/smpeer/internal/smp"
)

const nonceSize = 16

// Challenge opens the handshake: the initiator's nonce.
type Challenge struct {
	Nonce []byte
}

// Response answers a challenge with the responder's nonce and an HMAC over
// challenge-nonce || response-nonce.
type Response struct {
	Nonce []byte
	MAC   []byte
}

// Verdict closes the handshake: the initiator's HMAC over response-nonce ||
// challenge-nonce, plus the equality it concluded.
type Verdict struct {
	MAC   []byte
	Equal bool
}

type state uint8

const (
	stateStart state = iota
	stateAwaitResponse
	stateAwaitVerdict
	stateDone
)

// Engine runs one side of the handshake. Which side is decided by the first
// Transit call: nil input makes it the initiator, a Challenge makes it the
// responder.
type Engine struct {
	key       []byte
	nonce     []byte
	peerNonce []byte
	state     state
	result    bool
}

var _ smp.Engine = (*Engine)(nil)

// New returns an engine seeded with the given secret.
func New(secret string) *Engine {
	key := sha256.Sum256([]byte(secret))
	return &Engine{key: key[:]}
}

// NewFactory adapts New to the smp.Factory signature.
func NewFactory() smp.Factory {
	return func(secret string) smp.Engine { return New(secret) }
}

func (e *Engine) Transit(msg smp.Message) (smp.Message, error) {
	switch m := msg.(type) {
	case nil:
		if e.state != stateStart {
			return nil, fmt.Errorf("unexpected nil message in state %d", e.state)
		}
		nonce, err := newNonce()
		if err != nil {
			return nil, err
		}
		e.nonce = nonce
		e.state = stateAwaitResponse
		return &Challenge{Nonce: e.nonce}, nil

	case *Challenge:
		if e.state != stateStart {
			return nil, fmt.Errorf("unexpected challenge in state %d", e.state)
		}
		if len(m.Nonce) != nonceSize {
			return nil, fmt.Errorf("challenge nonce has %d bytes, want %d", len(m.Nonce), nonceSize)
		}
		nonce, err := newNonce()
		if err != nil {
			return nil, err
		}
		e.nonce = nonce
		e.peerNonce = m.Nonce
		e.state = stateAwaitVerdict
		return &Response{
			Nonce: e.nonce,
			MAC:   e.mac(e.peerNonce, e.nonce),
		}, nil

	case *Response:
		if e.state != stateAwaitResponse {
			return nil, fmt.Errorf("unexpected response in state %d", e.state)
		}
		if len(m.Nonce) != nonceSize {
			return nil, fmt.Errorf("response nonce has %d bytes, want %d", len(m.Nonce), nonceSize)
		}
		e.peerNonce = m.Nonce
		equal := hmac.Equal(m.MAC, e.mac(e.nonce, e.peerNonce))
		e.result = equal
		e.state = stateDone
		return &Verdict{
			MAC:   e.mac(e.peerNonce, e.nonce),
			Equal: equal,
		}, nil

	case *Verdict:
		if e.state != stateAwaitVerdict {
			return nil, fmt.Errorf("unexpected verdict in state %d", e.state)
		}
		e.result = hmac.Equal(m.MAC, e.mac(e.nonce, e.peerNonce))
		e.state = stateDone
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown message type %T", msg)
	}
}

func (e *Engine) Finished() bool {
	return e.state == stateDone
}

func (e *Engine) Result() bool {
	return e.result
}

func (e *Engine) mac(a, b []byte) []byte {
	h := hmac.New(sha256.New, e.key)
	h.Write(a)
	h.Write(b)
	return h.Sum(nil)
}

func newNonce() ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return nonce, nil
}
