// Package mock feeds the panel hub with synthetic model payloads, so the
// viewer can be demoed without a live Python session.
package mock

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/ocp-viewer/bridge/internal/panel"
)

// Generator emits one tessellation-shaped payload per tick.
type Generator struct {
	hub      *panel.Hub
	port     int
	interval time.Duration
	tick     int
}

func NewGenerator(hub *panel.Hub, port int, interval time.Duration) *Generator {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Generator{
		hub:      hub,
		port:     port,
		interval: interval,
	}
}

// Start runs the generator until ctx ends.
func (g *Generator) Start(ctx context.Context) {
	log.Printf("mock generator feeding panel %d every %s", g.port, g.interval)
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.emit()
		}
	}
}

func (g *Generator) emit() {
	pnl := g.hub.Get(g.port)
	if pnl == nil {
		return
	}
	payload, err := json.Marshal(g.payload())
	if err != nil {
		return
	}
	pnl.Forward(payload)
	g.tick++
}

// payload mimics the shape of a tessellated part group: a name, a bounding
// box and a few vertices. Enough for the viewer page to react to.
func (g *Generator) payload() map[string]any {
	phase := float64(g.tick) / 10
	verts := make([][3]float64, 0, 8)
	for i := 0; i < 8; i++ {
		a := phase + float64(i)*math.Pi/4
		verts = append(verts, [3]float64{math.Cos(a), math.Sin(a), rand.Float64() * 0.1})
	}
	return map[string]any{
		"type": "data",
		"model": map[string]any{
			"name":     "mock-part",
			"id":       g.tick,
			"bb":       map[string]float64{"xmin": -1, "xmax": 1, "ymin": -1, "ymax": 1, "zmin": 0, "zmax": 0.1},
			"vertices": verts,
		},
	}
}
