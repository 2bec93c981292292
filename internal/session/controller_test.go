package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ocp-viewer/bridge/internal/panel"
)

// recordingSurface captures status-surface calls for assertions.
type recordingSurface struct {
	refreshes []string
	disposed  int
}

func (r *recordingSurface) Refresh(label string) { r.refreshes = append(r.refreshes, label) }
func (r *recordingSurface) SetWatch(bool)        {}
func (r *recordingSurface) Dispose()             { r.disposed++ }

// freePort grabs an ephemeral port and releases it for the test to reuse.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("probe listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func dialWS(t *testing.T, port int, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(
		fmt.Sprintf("ws://127.0.0.1:%d%s", port, path), nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	return conn
}

func readWithin(t *testing.T, conn *websocket.Conn, d time.Duration) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(d))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return raw
}

func newTestController(surface *recordingSurface) (*Controller, *panel.Hub) {
	hub := panel.NewHub()
	return NewController("127.0.0.1", hub, surface, nil), hub
}

func TestStartRefreshesSurfaceAndListens(t *testing.T) {
	surface := &recordingSurface{}
	c, _ := newTestController(surface)
	defer c.Dispose()

	port := freePort(t)
	sess, err := c.Start(port)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if sess.Status() != Listening {
		t.Errorf("status: expected Listening, got %s", sess.Status())
	}
	if !c.IsStarted() {
		t.Error("IsStarted should be true after Start")
	}
	want := fmt.Sprintf("%d", port)
	if len(surface.refreshes) != 1 || surface.refreshes[0] != want {
		t.Errorf("surface refreshes: expected [%s], got %v", want, surface.refreshes)
	}
}

func TestStartPortInUse(t *testing.T) {
	port := freePort(t)
	blocker, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		t.Fatalf("blocker listen: %v", err)
	}
	defer blocker.Close()

	c, _ := newTestController(&recordingSurface{})
	if _, err := c.Start(port); !errors.Is(err, ErrPortInUse) {
		t.Fatalf("expected ErrPortInUse, got %v", err)
	}
	if c.IsStarted() {
		t.Error("failed start must not leave a session behind")
	}
}

func TestStartNonConflictFailureIsNotPortInUse(t *testing.T) {
	// Binding a non-local address fails with something other than
	// EADDRINUSE; the negotiator must not retry on it.
	c := NewController("203.0.113.7", panel.NewHub(), &recordingSurface{}, nil)
	_, err := c.Start(freePort(t))
	if err == nil {
		t.Skip("unroutable bind unexpectedly succeeded")
	}
	if errors.Is(err, ErrPortInUse) {
		t.Fatalf("non-conflict failure misclassified as port-in-use: %v", err)
	}
}

func TestDisposeIdempotentAndSafeBeforeStart(t *testing.T) {
	surface := &recordingSurface{}
	c, _ := newTestController(surface)

	c.Dispose() // never started
	if surface.disposed != 0 {
		t.Error("dispose before start should not notify the surface")
	}

	sess, err := c.Start(freePort(t))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	c.Dispose()
	c.Dispose()

	if sess.Status() != Disposed {
		t.Errorf("status: expected Disposed, got %s", sess.Status())
	}
	if surface.disposed != 1 {
		t.Errorf("surface should be disposed exactly once, got %d", surface.disposed)
	}
}

func TestStartSupersedesPriorSession(t *testing.T) {
	surface := &recordingSurface{}
	c, _ := newTestController(surface)
	defer c.Dispose()

	first, err := c.Start(freePort(t))
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	second, err := c.Start(freePort(t))
	if err != nil {
		t.Fatalf("second start: %v", err)
	}

	if first.Status() != Disposed {
		t.Error("prior session should be disposed when superseded")
	}
	if second.Status() != Listening {
		t.Error("new session should be listening")
	}
}

func TestFailedStartKeepsPriorSessionRunning(t *testing.T) {
	surface := &recordingSurface{}
	c, _ := newTestController(surface)
	defer c.Dispose()

	first, err := c.Start(freePort(t))
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// 99999 is not a bindable port, so this fails outside the
	// port-in-use class.
	if _, err := c.Start(99999); err == nil {
		t.Fatal("expected bind failure")
	} else if errors.Is(err, ErrPortInUse) {
		t.Fatalf("misclassified as port-in-use: %v", err)
	}

	if first.Status() != Listening {
		t.Errorf("prior session must survive a fatal start failure, got %s", first.Status())
	}
	if !c.IsStarted() {
		t.Error("IsStarted should still report the prior session")
	}
	if surface.disposed != 0 {
		t.Errorf("surface disposed %d times during a failed start", surface.disposed)
	}
}

func TestPortInUseFailureKeepsPriorSessionRunning(t *testing.T) {
	c, _ := newTestController(&recordingSurface{})
	defer c.Dispose()

	first, err := c.Start(freePort(t))
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	busy := freePort(t)
	blocker, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", busy))
	if err != nil {
		t.Fatalf("blocker listen: %v", err)
	}
	defer blocker.Close()

	if _, err := c.Start(busy); !errors.Is(err, ErrPortInUse) {
		t.Fatalf("expected ErrPortInUse, got %v", err)
	}
	if first.Status() != Listening {
		t.Errorf("prior session must survive a port conflict, got %s", first.Status())
	}
}

func TestStartSamePortRebinds(t *testing.T) {
	c, _ := newTestController(&recordingSurface{})
	defer c.Dispose()

	port := freePort(t)
	first, err := c.Start(port)
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	second, err := c.Start(port)
	if err != nil {
		t.Fatalf("rebind on the same port: %v", err)
	}

	if first.Status() != Disposed {
		t.Error("prior session on the same port should be disposed")
	}
	if second.Status() != Listening {
		t.Error("rebound session should be listening")
	}
}

func TestDataPayloadForwardedToViewer(t *testing.T) {
	c, _ := newTestController(&recordingSurface{})
	defer c.Dispose()

	port := freePort(t)
	if _, err := c.Start(port); err != nil {
		t.Fatalf("start: %v", err)
	}

	viewer := dialWS(t, port, "/viewer")
	defer viewer.Close()
	python := dialWS(t, port, "/ws")
	defer python.Close()

	payload := `{"type":"data","model":{"parts":[]}}`
	if err := python.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		t.Fatalf("write: %v", err)
	}

	if got := string(readWithin(t, viewer, 2*time.Second)); got != payload {
		t.Errorf("viewer payload: expected %s, got %s", payload, got)
	}
}

func TestUpdatesFanOutToListeners(t *testing.T) {
	c, _ := newTestController(&recordingSurface{})
	defer c.Dispose()

	port := freePort(t)
	if _, err := c.Start(port); err != nil {
		t.Fatalf("start: %v", err)
	}

	backend := dialWS(t, port, "/ws")
	defer backend.Close()
	if err := backend.WriteMessage(websocket.TextMessage, []byte(`{"type":"listen"}`)); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	python := dialWS(t, port, "/ws")
	defer python.Close()

	// Give the listen registration a moment to land before publishing.
	time.Sleep(50 * time.Millisecond)

	update := `{"type":"updates","states":{"grid":[true,false]}}`
	if err := python.WriteMessage(websocket.TextMessage, []byte(update)); err != nil {
		t.Fatalf("write: %v", err)
	}

	if got := string(readWithin(t, backend, 2*time.Second)); got != update {
		t.Errorf("listener payload: expected %s, got %s", update, got)
	}
}

func TestConfigRequestAnsweredWithPort(t *testing.T) {
	c, _ := newTestController(&recordingSurface{})
	defer c.Dispose()

	port := freePort(t)
	if _, err := c.Start(port); err != nil {
		t.Fatalf("start: %v", err)
	}

	python := dialWS(t, port, "/ws")
	defer python.Close()
	if err := python.WriteMessage(websocket.TextMessage, []byte(`{"type":"config"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	var reply struct {
		Type string `json:"type"`
		Port int    `json:"port"`
	}
	if err := json.Unmarshal(readWithin(t, python, 2*time.Second), &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.Type != "config" || reply.Port != port {
		t.Errorf("reply: expected config/%d, got %s/%d", port, reply.Type, reply.Port)
	}
}

func TestUnknownMessageDropped(t *testing.T) {
	c, _ := newTestController(&recordingSurface{})
	defer c.Dispose()

	port := freePort(t)
	if _, err := c.Start(port); err != nil {
		t.Fatalf("start: %v", err)
	}

	viewer := dialWS(t, port, "/viewer")
	defer viewer.Close()
	python := dialWS(t, port, "/ws")
	defer python.Close()

	if err := python.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	viewer.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, _, err := viewer.ReadMessage(); err == nil {
		t.Error("unknown message type must not reach the viewer")
	}
}
