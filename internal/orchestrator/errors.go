package orchestrator

import (
	"fmt"
	"time"
)

// ErrorKind enumerates the failure categories the orchestrator reports.
// Matching is by kind: errors.Is(err, ErrTimeout) holds for every timeout
// error regardless of its message.
type ErrorKind uint8

const (
	KindServerUnconnected ErrorKind = iota + 1
	KindServerFault
	KindTimeout
	KindEventUnsupported
)

func (k ErrorKind) String() string {
	switch k {
	case KindServerUnconnected:
		return "SERVER_UNCONNECTED"
	case KindServerFault:
		return "SERVER_FAULT"
	case KindTimeout:
		return "TIMEOUT"
	case KindEventUnsupported:
		return "EVENT_UNSUPPORTED"
	default:
		return "UNKNOWN"
	}
}

// Error is the orchestrator's tagged error type.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrServerUnconnected = &Error{Kind: KindServerUnconnected}
	ErrServerFault       = &Error{Kind: KindServerFault}
	ErrTimeout           = &Error{Kind: KindTimeout}
	ErrEventUnsupported  = &Error{Kind: KindEventUnsupported}
)

func errServerUnconnected(op string) error {
	return &Error{
		Kind:    KindServerUnconnected,
		Message: fmt.Sprintf("%s requires a completed registration", op),
	}
}

func errServerFault(confirmed, requested string) error {
	return &Error{
		Kind:    KindServerFault,
		Message: fmt.Sprintf("server confirmed id %q, requested %q", confirmed, requested),
	}
}

func errTimeout(remoteID string, bound time.Duration) error {
	return &Error{
		Kind:    KindTimeout,
		Message: fmt.Sprintf("session with %s did not finish within %s", remoteID, bound),
	}
}

func errEventUnsupported(kind EventKind) error {
	return &Error{
		Kind:    KindEventUnsupported,
		Message: fmt.Sprintf("unrecognized event kind %q", kind),
	}
}
