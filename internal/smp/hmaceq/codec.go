package hmaceq

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/smpeer/smpeer/internal/smp"
)

func init() {
	gob.Register(&Challenge{})
	gob.Register(&Response{})
	gob.Register(&Verdict{})
}

// message narrows smp.Message to the three handshake frames so the codec
// rejects foreign types before they hit the wire.
type message interface {
	handshakeFrame()
}

func (*Challenge) handshakeFrame() {}
func (*Response) handshakeFrame()  {}
func (*Verdict) handshakeFrame()   {}

// Codec frames handshake messages with gob.
type Codec struct{}

var _ smp.Codec = Codec{}

func NewCodec() Codec {
	return Codec{}
}

func (Codec) Encode(msg smp.Message) ([]byte, error) {
	m, ok := msg.(message)
	if !ok {
		return nil, fmt.Errorf("cannot encode message type %T", msg)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (Codec) Decode(data []byte) (smp.Message, error) {
	var m message
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}
