package protocol

// PeerIDSize is the length, in hex characters, of server-assigned peer ids.
const PeerIDSize = 16

type MessageType uint16

const (
	MsgPing       MessageType = 0x0001
	MsgPong       MessageType = 0x0002
	MsgRegister   MessageType = 0x0010
	MsgRegistered MessageType = 0x0011
	MsgSignal     MessageType = 0x0020
	MsgError      MessageType = 0x00FF
)

func (t MessageType) String() string {
	switch t {
	case MsgPing:
		return "PING"
	case MsgPong:
		return "PONG"
	case MsgRegister:
		return "REGISTER"
	case MsgRegistered:
		return "REGISTERED"
	case MsgSignal:
		return "SIGNAL"
	case MsgError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

type ErrorCode uint16

const (
	ErrUnknown      ErrorCode = 0x0000
	ErrInvalidMsg   ErrorCode = 0x0001
	ErrPathMismatch ErrorCode = 0x0002
	ErrIDTaken      ErrorCode = 0x0003
	ErrPeerNotFound ErrorCode = 0x0004
	ErrInternal     ErrorCode = 0x00FF
)

func (e ErrorCode) String() string {
	switch e {
	case ErrInvalidMsg:
		return "INVALID_MESSAGE"
	case ErrPathMismatch:
		return "PATH_MISMATCH"
	case ErrIDTaken:
		return "ID_TAKEN"
	case ErrPeerNotFound:
		return "PEER_NOT_FOUND"
	case ErrInternal:
		return "INTERNAL_ERROR"
	case ErrUnknown:
		return "UNKNOWN"
	default:
		return "UNKNOWN"
	}
}
