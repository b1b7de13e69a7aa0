package socket

import (
	"sync"

	ncerr "nsock/internal/errors"
)

// EventKind identifies what a notification reports.
type EventKind int

const (
	Accepted EventKind = iota + 1
	Connected
	Disconnected
	Received
	Sent
	Exception
)

func (k EventKind) String() string {
	switch k {
	case Accepted:
		return "accepted"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case Received:
		return "received"
	case Sent:
		return "sent"
	case Exception:
		return "exception"
	}
	return "unknown"
}

// Event is one notification.  Source is the socket that emitted it;
// Socket is the socket it concerns, which differs from Source only for
// Accepted, where it is the newly accepted peer.  Data is set for
// Received and Sent, Err for Exception.  Handlers must not modify Data.
type Event struct {
	Kind   EventKind
	Source *Socket
	Socket *Socket
	Data   []byte
	Err    error
}

// Handler receives notifications.  Handlers run synchronously on the
// goroutine that produced the occurrence, in registration order, and
// never with the socket's lock held, so they may call back into it.
type Handler func(Event)

type subscribers struct {
	mu sync.RWMutex
	m  map[EventKind][]Handler
}

func (s *subscribers) add(kind EventKind, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[EventKind][]Handler)
	}
	s.m[kind] = append(s.m[kind], h)
}

func (s *subscribers) get(kind EventKind) []Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m[kind]
}

// On registers h for notifications of the given kind.
func (s *Socket) On(kind EventKind, h Handler) {
	s.subs.add(kind, h)
}

// OnAccepted registers fn to receive each newly accepted peer.  Handlers
// registered on the peer from inside fn see all of its traffic: the
// peer's receive loop starts only after every accepted handler returns.
func (s *Socket) OnAccepted(fn func(peer *Socket)) {
	s.On(Accepted, func(ev Event) { fn(ev.Socket) })
}

// OnConnected registers fn to run when an outbound connect completes.
func (s *Socket) OnConnected(fn func(s *Socket)) {
	s.On(Connected, func(ev Event) { fn(ev.Socket) })
}

// OnDisconnected registers fn to run when the socket's handle is torn
// down by an I/O failure or by the peer.
func (s *Socket) OnDisconnected(fn func(s *Socket)) {
	s.On(Disconnected, func(ev Event) { fn(ev.Socket) })
}

// OnReceived registers fn for each chunk read from the stream.
func (s *Socket) OnReceived(fn func(s *Socket, data []byte)) {
	s.On(Received, func(ev Event) { fn(ev.Socket, ev.Data) })
}

// OnSent registers fn for each completed Send.
func (s *Socket) OnSent(fn func(s *Socket, data []byte)) {
	s.On(Sent, func(ev Event) { fn(ev.Socket, ev.Data) })
}

// OnException registers fn for errors.  Registering at least one
// exception handler switches the socket from returning / reporting
// unhandled errors to delivering them here.
func (s *Socket) OnException(fn func(s *Socket, err error)) {
	s.On(Exception, func(ev Event) { fn(ev.Socket, ev.Err) })
}

func (s *Socket) emit(ev Event) {
	for _, h := range s.subs.get(ev.Kind) {
		h(ev)
	}
}

// raise delivers err to the exception handlers.  With none registered
// it returns err so a synchronous caller can hand it back.
func (s *Socket) raise(err error) error {
	handlers := s.subs.get(Exception)
	if len(handlers) == 0 {
		return err
	}
	ev := Event{Kind: Exception, Source: s, Socket: s, Err: err}
	for _, h := range handlers {
		h(ev)
	}
	return nil
}

// raiseAsync is raise for goroutines that have no caller to return to:
// an error nobody subscribed to goes to the Unhandled fallback.
func (s *Socket) raiseAsync(err error) {
	if err = s.raise(err); err != nil {
		s.unhandled(&ncerr.UnhandledError{Socket: s.name, Err: err})
	}
}
