package protocol

import (
	"bytes"
	"testing"
)

func TestCodecRoundTrip(t *testing.T) {
	codec := NewCodec()

	original := &Signal{
		TargetID: "bob",
		SourceID: "alice",
		Payload:  []byte{0x01, 0x02, 0x03},
	}

	data, err := codec.EncodeToBytes(original)
	if err != nil {
		t.Fatalf("EncodeToBytes failed: %v", err)
	}

	decoded, err := codec.DecodeFromBytes(data)
	if err != nil {
		t.Fatalf("DecodeFromBytes failed: %v", err)
	}

	signal, ok := decoded.(*Signal)
	if !ok {
		t.Fatalf("Expected *Signal, got %T", decoded)
	}
	if signal.TargetID != "bob" || signal.SourceID != "alice" {
		t.Errorf("Unexpected ids: target=%q source=%q", signal.TargetID, signal.SourceID)
	}
	if !bytes.Equal(signal.Payload, original.Payload) {
		t.Errorf("Payload mismatch: %v", signal.Payload)
	}
}

func TestCodecRegisterRoundTrip(t *testing.T) {
	codec := NewCodec()

	data, err := codec.EncodeToBytes(&Register{RequestedID: "pid", Path: "/compare"})
	if err != nil {
		t.Fatalf("EncodeToBytes failed: %v", err)
	}

	decoded, err := codec.DecodeFromBytes(data)
	if err != nil {
		t.Fatalf("DecodeFromBytes failed: %v", err)
	}

	reg, ok := decoded.(*Register)
	if !ok {
		t.Fatalf("Expected *Register, got %T", decoded)
	}
	if reg.RequestedID != "pid" {
		t.Errorf("Expected requested id 'pid', got %q", reg.RequestedID)
	}
	if reg.Path != "/compare" {
		t.Errorf("Expected path '/compare', got %q", reg.Path)
	}
}

func TestStreamSequence(t *testing.T) {
	var buf bytes.Buffer
	stream := NewStream(&buf)

	sent := []Message{
		&Register{RequestedID: "a", Path: "/"},
		&Registered{ID: "a"},
		&Ping{},
		&Signal{TargetID: "b", Payload: []byte("offer")},
	}

	for _, msg := range sent {
		if err := stream.Send(msg); err != nil {
			t.Fatalf("Send %s failed: %v", msg.Type(), err)
		}
	}

	for _, want := range sent {
		got, err := stream.Receive()
		if err != nil {
			t.Fatalf("Receive failed: %v", err)
		}
		if got.Type() != want.Type() {
			t.Errorf("Expected %s, got %s", want.Type(), got.Type())
		}
	}
}

func TestMessageTypeString(t *testing.T) {
	if MsgSignal.String() != "SIGNAL" {
		t.Errorf("Expected SIGNAL, got %s", MsgSignal)
	}
	if MessageType(0xDEAD).String() != "UNKNOWN" {
		t.Errorf("Expected UNKNOWN for unassigned type")
	}
	if ErrPathMismatch.String() != "PATH_MISMATCH" {
		t.Errorf("Expected PATH_MISMATCH, got %s", ErrPathMismatch)
	}
}
