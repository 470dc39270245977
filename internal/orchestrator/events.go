package orchestrator

import "sync"

// EventKind names a notification the orchestrator publishes.
type EventKind string

const (
	EventServerConnected    EventKind = "server-connected"
	EventServerDisconnected EventKind = "server-disconnected"
	EventError              EventKind = "error"
	EventSessionFinished    EventKind = "incoming-session-finished"
)

// Event carries the payload of one notification. Message is set for
// EventError; RemoteID and Result are set for EventSessionFinished.
type Event struct {
	Kind     EventKind
	Message  string
	RemoteID string
	Result   bool
}

// Handler receives published events. Handlers run on the goroutine that
// produced the event and should return quickly.
type Handler func(Event)

// dispatcher keeps an ordered subscriber list per event kind. Multiple
// subscriptions to one kind are all invoked, in registration order.
type dispatcher struct {
	mu       sync.Mutex
	handlers map[EventKind][]Handler
}

func newDispatcher() *dispatcher {
	return &dispatcher{
		handlers: make(map[EventKind][]Handler),
	}
}

func (d *dispatcher) on(kind EventKind, h Handler) error {
	switch kind {
	case EventServerConnected, EventServerDisconnected, EventError, EventSessionFinished:
	default:
		return errEventUnsupported(kind)
	}

	d.mu.Lock()
	d.handlers[kind] = append(d.handlers[kind], h)
	d.mu.Unlock()
	return nil
}

func (d *dispatcher) emit(ev Event) {
	d.mu.Lock()
	handlers := make([]Handler, len(d.handlers[ev.Kind]))
	copy(handlers, d.handlers[ev.Kind])
	d.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}
