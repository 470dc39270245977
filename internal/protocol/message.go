// Package protocol defines the wire messages exchanged between a peer and
// the rendezvous server, and the codec that frames them.
package protocol

type Message interface {
	Type() MessageType
}

// Register is the first message a peer sends after dialing. RequestedID may
// be empty, in which case the server assigns one.
type Register struct {
	RequestedID string
	Path        string
}

func (Register) Type() MessageType { return MsgRegister }

// Registered confirms a registration and carries the id the server bound
// the connection to.
type Registered struct {
	ID string
}

func (Registered) Type() MessageType { return MsgRegistered }

// Signal relays an opaque payload to another registered peer. SourceID is
// stamped by the server on delivery; peers cannot spoof it.
type Signal struct {
	TargetID string
	SourceID string
	Payload  []byte
}

func (Signal) Type() MessageType { return MsgSignal }

type Ping struct{}

func (Ping) Type() MessageType { return MsgPing }

type Pong struct{}

func (Pong) Type() MessageType { return MsgPong }

type Error struct {
	Code    ErrorCode
	Message string
}

func (Error) Type() MessageType { return MsgError }
