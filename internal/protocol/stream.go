package protocol

import (
	"encoding/gob"
	"io"
	"sync"
)

// Stream frames messages over a long-lived connection with a persistent
// encoder/decoder pair. Sends are serialized; Receive must only be called
// from a single reader goroutine.
type Stream struct {
	enc *gob.Encoder
	dec *gob.Decoder
	mu  sync.Mutex
}

func NewStream(rw io.ReadWriter) *Stream {
	return &Stream{
		enc: gob.NewEncoder(rw),
		dec: gob.NewDecoder(rw),
	}
}

func (s *Stream) Send(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(&msg)
}

func (s *Stream) Receive() (Message, error) {
	var msg Message
	if err := s.dec.Decode(&msg); err != nil {
		return nil, err
	}
	return msg, nil
}
