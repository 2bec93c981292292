// Package panel owns the visualization side of the bridge: browser viewer
// connections grouped per port, so payloads forwarded by a session can never
// reach a panel belonging to a different session.
package panel

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// Panel is one display surface, addressed by the port of the session that
// feeds it. It holds the connected viewer clients and fans forwarded
// payloads out to them.
type Panel struct {
	port int

	mu       sync.RWMutex
	clients  map[*client]bool
	disposed bool
}

func newPanel(port int) *Panel {
	return &Panel{
		port:    port,
		clients: make(map[*client]bool),
	}
}

func (p *Panel) Port() int {
	return p.port
}

// Attach registers a viewer websocket connection. The returned handle is
// passed back to Detach when the connection's read side ends.
func (p *Panel) Attach(conn *websocket.Conn) *client {
	c := newClient(conn)

	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		c.close()
		return c
	}
	p.clients[c] = true
	p.mu.Unlock()

	return c
}

func (p *Panel) Detach(c *client) {
	p.mu.Lock()
	if _, ok := p.clients[c]; ok {
		delete(p.clients, c)
		c.close()
	}
	p.mu.Unlock()
}

// Forward fans a payload out to every attached viewer. Forwarding to a
// disposed panel is a silent no-op: an in-flight payload that lost its
// target is dropped, not an error.
func (p *Panel) Forward(payload []byte) {
	p.mu.RLock()
	if p.disposed {
		p.mu.RUnlock()
		return
	}
	clients := make([]*client, 0, len(p.clients))
	for c := range p.clients {
		clients = append(clients, c)
	}
	p.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- payload:
		default:
			// Viewer can't keep up, disconnect it.
			log.Printf("panel %d: viewer too slow, disconnecting", p.port)
			p.Detach(c)
		}
	}
}

// Dispose closes every viewer connection. Idempotent.
func (p *Panel) Dispose() {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return
	}
	p.disposed = true
	clients := p.clients
	p.clients = make(map[*client]bool)
	p.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

func (p *Panel) ClientCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.clients)
}
