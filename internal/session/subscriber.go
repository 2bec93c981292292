package session

import (
	"sync"

	"github.com/gorilla/websocket"
)

// subscriber wraps a websocket connection that receives fan-out messages
// (the measurement backend, or any other "listen" client). Writes are
// serialized because routing goroutines for several inbound connections may
// target the same listener.
type subscriber struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *subscriber) write(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *subscriber) closeConn() {
	s.conn.Close()
}
