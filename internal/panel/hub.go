package panel

import (
	"fmt"
	"sync"
)

// Hub is the registry of live panels, keyed by session port.
type Hub struct {
	mu     sync.RWMutex
	panels map[int]*Panel
}

func NewHub() *Hub {
	return &Hub{panels: make(map[int]*Panel)}
}

// Ensure returns the panel for port, creating it if needed.
func (h *Hub) Ensure(port int) *Panel {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.panels[port]; ok {
		return p
	}
	p := newPanel(port)
	h.panels[port] = p
	return p
}

// Get returns the panel for port, or nil if none exists.
func (h *Hub) Get(port int) *Panel {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.panels[port]
}

// Dispose tears down the panel for port, if any. Safe to call for ports
// that never had a panel.
func (h *Hub) Dispose(port int) {
	h.mu.Lock()
	p, ok := h.panels[port]
	if ok {
		delete(h.panels, port)
	}
	h.mu.Unlock()

	if ok {
		p.Dispose()
	}
}

// DisposeAll tears down every panel. Used by the environment reactor.
func (h *Hub) DisposeAll() {
	h.mu.Lock()
	panels := h.panels
	h.panels = make(map[int]*Panel)
	h.mu.Unlock()

	for _, p := range panels {
		p.Dispose()
	}
}

// PanelState is the serialized form of a panel, enough to bring one back
// after a host restart.
type PanelState struct {
	Port int `json:"port"`
}

// Revive reconstructs a panel from saved state. Implements the host's
// panel-restoration entry point.
func (h *Hub) Revive(saved PanelState) (*Panel, error) {
	if saved.Port <= 0 || saved.Port > 65535 {
		return nil, fmt.Errorf("revive: invalid port %d", saved.Port)
	}
	return h.Ensure(saved.Port), nil
}
