// Package session owns the listening endpoint that receives model payloads
// from the Python side and forwards them to the visualization panel.
package session

import (
	"net"
	"sync"
)

// Status tracks a session through its lifecycle. There is no way back from
// Disposed; a new start creates a new Session.
type Status int

const (
	Stopped Status = iota
	Listening
	Disposed
)

var statusNames = map[Status]string{
	Stopped:   "stopped",
	Listening: "listening",
	Disposed:  "disposed",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

// Session is one running instance of the listening endpoint. At most one
// session is Listening per bridge process; the controller enforces that.
type Session struct {
	port int
	ln   net.Listener

	mu        sync.Mutex
	status    Status
	listeners map[*subscriber]bool
	conns     map[*subscriber]bool
}

func newSession(port int, ln net.Listener) *Session {
	return &Session{
		port:      port,
		ln:        ln,
		status:    Listening,
		listeners: make(map[*subscriber]bool),
		conns:     make(map[*subscriber]bool),
	}
}

func (s *Session) Port() int {
	return s.port
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) addListener(sub *subscriber) {
	s.mu.Lock()
	if s.status == Listening {
		s.listeners[sub] = true
	}
	s.mu.Unlock()
}

func (s *Session) removeListener(sub *subscriber) {
	s.mu.Lock()
	delete(s.listeners, sub)
	s.mu.Unlock()
}

func (s *Session) addConn(sub *subscriber) {
	s.mu.Lock()
	if s.status == Listening {
		s.conns[sub] = true
	}
	s.mu.Unlock()
}

func (s *Session) removeConn(sub *subscriber) {
	s.mu.Lock()
	delete(s.conns, sub)
	delete(s.listeners, sub)
	s.mu.Unlock()
}

// fanOut delivers a payload to every registered listener. Write failures
// drop the listener; the payload is not retried.
func (s *Session) fanOut(payload []byte) {
	s.mu.Lock()
	subs := make([]*subscriber, 0, len(s.listeners))
	for sub := range s.listeners {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		if err := sub.write(payload); err != nil {
			s.removeListener(sub)
		}
	}
}

// dispose closes the endpoint. Idempotent; returns true on the first call.
func (s *Session) dispose() bool {
	s.mu.Lock()
	if s.status == Disposed {
		s.mu.Unlock()
		return false
	}
	s.status = Disposed
	conns := s.conns
	s.conns = make(map[*subscriber]bool)
	s.listeners = make(map[*subscriber]bool)
	s.mu.Unlock()

	for sub := range conns {
		sub.closeConn()
	}
	s.ln.Close()
	return true
}
