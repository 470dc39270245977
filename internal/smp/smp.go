// Package smp defines the contracts between the session orchestrator and a
// pluggable equality-comparison protocol engine.
//
// The orchestrator never inspects protocol messages: it moves them between
// a connection and an engine, byte-framed by a Codec. An engine instance
// belongs to exactly one session and is mutated by exactly one goroutine.
package smp

// Message is one protocol message produced or consumed by an Engine. Its
// concrete type is owned by the engine implementation and its Codec.
type Message any

// Engine is the stateful comparison protocol. Transit with a nil message
// asks the initiator side for the protocol's first message; every engine
// must return a non-nil first message in that case.
//
// Engines are not safe for concurrent use.
type Engine interface {
	// Transit consumes an inbound message and returns the reply to send,
	// or nil when there is nothing to send.
	Transit(msg Message) (Message, error)

	// Finished reports whether the protocol has reached a terminal state.
	Finished() bool

	// Result is the comparison outcome. Defined only once Finished is true.
	Result() bool
}

// Factory builds a fresh engine seeded with the local secret. Called once
// per session, on both the initiating and the accepting side.
type Factory func(secret string) Engine

// Codec serializes engine messages to the byte frames carried by the
// transport.
type Codec interface {
	Encode(msg Message) ([]byte, error)
	Decode(data []byte) (Message, error)
}
