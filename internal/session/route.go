package session

import (
	"encoding/json"
	"log"
)

// Message kinds, mirroring the Python side's MessageType enum.
const (
	kindData            = "data"
	kindConfig          = "config"
	kindUpdates         = "updates"
	kindListen          = "listen"
	kindBackend         = "backend"
	kindBackendResponse = "backend_response"
)

// envelope is the minimal framing shared by every bridge message. The rest
// of the payload is opaque to the core and forwarded unmodified.
type envelope struct {
	Type string `json:"type"`
}

// route dispatches one inbound payload. Model data and backend responses go
// to the panel addressed by this session's port; updates and backend
// requests fan out to listen subscribers. The panel is looked up at forward
// time: if it disappeared mid-flight, the payload is dropped silently.
func (c *Controller) route(sess *Session, sub *subscriber, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("session %d: undecodable payload dropped: %v", sess.port, err)
		return
	}

	switch env.Type {
	case kindData, kindBackendResponse:
		if pnl := c.hub.Get(sess.port); pnl != nil {
			pnl.Forward(raw)
		}
	case kindUpdates, kindBackend:
		sess.fanOut(raw)
	case kindListen:
		sess.addListener(sub)
	case kindConfig:
		reply, err := json.Marshal(map[string]any{
			"type": kindConfig,
			"port": sess.port,
		})
		if err == nil {
			if err := sub.write(reply); err != nil {
				log.Printf("session %d: config reply: %v", sess.port, err)
			}
		}
	default:
		log.Printf("session %d: unknown message type %q dropped", sess.port, env.Type)
	}
}
