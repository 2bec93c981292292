// Package dapclient speaks the Debug Adapter Protocol to an already-running
// adapter (debugpy) over TCP, delivering its events to the relay and
// issuing the relay's stackTrace/evaluate requests.
package dapclient

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/go-dap"
)

// ErrClosed reports a request issued after the adapter connection ended.
var ErrClosed = errors.New("dap connection closed")

const requestTimeout = 5 * time.Second

// EventHandler receives adapter-initiated messages (stopped, terminated,
// output, ...) in read order.
type EventHandler func(dap.Message)

// Client is one DAP connection. Requests are correlated to responses by
// sequence number; events are handed to the handler from the read
// goroutine, so handling per connection is sequential.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	events EventHandler

	mu      sync.Mutex
	seq     int
	pending map[int]chan dap.ResponseMessage
	closed  bool

	done chan struct{}
}

// Dial connects to a debug adapter listening at addr.
func Dial(addr string, events EventHandler) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, requestTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial debug adapter %s: %w", addr, err)
	}
	return New(conn, events), nil
}

// New wraps an established connection. The read loop starts immediately.
func New(conn net.Conn, events EventHandler) *Client {
	c := &Client{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		events:  events,
		pending: make(map[int]chan dap.ResponseMessage),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Client) readLoop() {
	defer c.Close()
	for {
		msg, err := dap.ReadProtocolMessage(c.reader)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Printf("dap read loop ended: %v", err)
			}
			return
		}

		switch m := msg.(type) {
		case dap.ResponseMessage:
			c.deliver(m)
		case dap.EventMessage:
			if c.events != nil {
				c.events(msg)
			}
		default:
			// Reverse requests (runInTerminal) are not supported.
			log.Printf("dap: ignoring unexpected message %T", m)
		}
	}
}

func (c *Client) deliver(resp dap.ResponseMessage) {
	seq := resp.GetResponse().RequestSeq
	c.mu.Lock()
	ch, ok := c.pending[seq]
	delete(c.pending, seq)
	c.mu.Unlock()
	if ok {
		ch <- resp
	}
}

// Close tears the connection down and fails all in-flight requests.
// Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.pending = make(map[int]chan dap.ResponseMessage)
	c.mu.Unlock()

	close(c.done)
	c.conn.Close()
}

// roundTrip sends one request and waits for its response. build receives
// the allocated sequence number.
func (c *Client) roundTrip(build func(seq int) dap.Message) (dap.ResponseMessage, error) {
	ch := make(chan dap.ResponseMessage, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.seq++
	seq := c.seq
	c.pending[seq] = ch
	err := dap.WriteProtocolMessage(c.conn, build(seq))
	c.mu.Unlock()

	if err != nil {
		c.forget(seq)
		return nil, fmt.Errorf("dap write: %w", err)
	}

	select {
	case resp := <-ch:
		r := resp.GetResponse()
		if !r.Success {
			return nil, fmt.Errorf("dap %s failed: %s", r.Command, r.Message)
		}
		return resp, nil
	case <-time.After(requestTimeout):
		c.forget(seq)
		return nil, fmt.Errorf("dap request %d timed out", seq)
	case <-c.done:
		return nil, ErrClosed
	}
}

func (c *Client) forget(seq int) {
	c.mu.Lock()
	delete(c.pending, seq)
	c.mu.Unlock()
}

func request(seq int, command string) dap.Request {
	return dap.Request{
		ProtocolMessage: dap.ProtocolMessage{Seq: seq, Type: "request"},
		Command:         command,
	}
}

// Initialize performs the client-side handshake. The adapter is already
// hosting the debuggee, so no launch/attach configuration follows.
func (c *Client) Initialize() error {
	_, err := c.roundTrip(func(seq int) dap.Message {
		return &dap.InitializeRequest{
			Request: request(seq, "initialize"),
			Arguments: dap.InitializeRequestArguments{
				ClientID:        "ocp-bridge",
				ClientName:      "OCP viewer bridge",
				AdapterID:       "debugpy",
				LinesStartAt1:   true,
				ColumnsStartAt1: true,
				PathFormat:      "path",
			},
		}
	})
	return err
}

// StackTrace fetches the frames of threadID, innermost first.
func (c *Client) StackTrace(threadID int) ([]dap.StackFrame, error) {
	resp, err := c.roundTrip(func(seq int) dap.Message {
		return &dap.StackTraceRequest{
			Request:   request(seq, "stackTrace"),
			Arguments: dap.StackTraceArguments{ThreadId: threadID},
		}
	})
	if err != nil {
		return nil, err
	}
	st, ok := resp.(*dap.StackTraceResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected stackTrace response %T", resp)
	}
	return st.Body.StackFrames, nil
}

// Evaluate runs expression inside frameID. The result is discarded; only
// the expression's side effect matters to the bridge.
func (c *Client) Evaluate(expression string, frameID int, context string) error {
	_, err := c.roundTrip(func(seq int) dap.Message {
		return &dap.EvaluateRequest{
			Request: request(seq, "evaluate"),
			Arguments: dap.EvaluateArguments{
				Expression: expression,
				FrameId:    frameID,
				Context:    context,
			},
		}
	})
	return err
}
