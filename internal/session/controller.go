package session

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/gorilla/websocket"

	"github.com/ocp-viewer/bridge/internal/panel"
	"github.com/ocp-viewer/bridge/internal/status"
)

// ErrPortInUse marks the one bind failure the port negotiator retries on.
// Everything else coming out of Start is fatal to the current operation.
var ErrPortInUse = errors.New("port already in use")

// Controller owns the single active session. Only the controller binds and
// releases the endpoint.
type Controller struct {
	host    string
	hub     *panel.Hub
	surface status.Surface
	page    http.Handler

	mu   sync.Mutex
	sess *Session
}

func NewController(host string, hub *panel.Hub, surface status.Surface, page http.Handler) *Controller {
	if host == "" {
		host = "127.0.0.1"
	}
	return &Controller{
		host:    host,
		hub:     hub,
		surface: surface,
		page:    page,
	}
}

// Start binds a listening endpoint on port and begins serving. A prior
// session is superseded only once the new bind succeeds: a failed Start
// aborts the current operation and leaves the running session untouched.
// Address-in-use failures are reported as ErrPortInUse.
func (c *Controller) Start(port int) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-binding the session's own port needs its listener released
	// before the bind can succeed.
	if c.sess != nil && c.sess.port == port {
		c.disposeLocked()
	}

	addr := net.JoinHostPort(c.host, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("%w: %s", ErrPortInUse, addr)
		}
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}

	c.disposeLocked()
	sess := newSession(port, ln)
	c.sess = sess
	c.hub.Ensure(port)

	mux := http.NewServeMux()
	if c.page != nil {
		mux.Handle("/", c.page)
	}
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		c.handleBridge(sess, w, r)
	})
	mux.HandleFunc("/viewer", func(w http.ResponseWriter, r *http.Request) {
		c.handleViewer(sess, w, r)
	})

	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
			log.Printf("session %d: serve: %v", port, err)
		}
	}()

	c.surface.Refresh(strconv.Itoa(port))
	log.Printf("viewer session listening on %s", addr)
	return sess, nil
}

// IsStarted reports whether a session is currently Listening.
func (c *Controller) IsStarted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess != nil && c.sess.Status() == Listening
}

// Session returns the current session, which may be nil or disposed.
func (c *Controller) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// Dispose releases the endpoint and resets the collaborators. Idempotent,
// and safe to call before Start ever succeeded.
func (c *Controller) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disposeLocked()
}

func (c *Controller) disposeLocked() {
	if c.sess == nil {
		return
	}
	port := c.sess.port
	if c.sess.dispose() {
		c.hub.Dispose(port)
		c.surface.Dispose()
		log.Printf("viewer session on port %d disposed", port)
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: localOrigin}

// localOrigin admits browser connections from the bridge's own host only.
// Non-browser clients (the Python side) send no Origin header at all.
func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if strings.Contains(origin, r.Host) {
		return true
	}
	return strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1")
}

// handleBridge serves the Python side: show() clients sending model data
// and measurement backends subscribing with a listen message.
func (c *Controller) handleBridge(sess *Session, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("session %d: upgrade: %v", sess.port, err)
		return
	}

	sub := &subscriber{conn: conn}
	sess.addConn(sub)
	defer func() {
		sess.removeConn(sub)
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		c.route(sess, sub, raw)
	}
}

// handleViewer serves browser panels. Messages from a viewer are UI state
// changes and fan out to listen subscribers.
func (c *Controller) handleViewer(sess *Session, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("session %d: viewer upgrade: %v", sess.port, err)
		return
	}

	pnl := c.hub.Get(sess.port)
	if pnl == nil {
		conn.Close()
		return
	}
	handle := pnl.Attach(conn)
	defer pnl.Detach(handle)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sess.fanOut(raw)
	}
}
