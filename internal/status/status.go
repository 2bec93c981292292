// Package status is the textual state sink for the bridge. The core tells
// it what changed; it never feeds anything back.
package status

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Surface receives lifecycle notifications from the core. Implementations
// render them however they like; the core never inspects the output.
type Surface interface {
	// Refresh is called with the textual port identifier whenever a
	// session reaches Listening.
	Refresh(portLabel string)
	// SetWatch reflects the current watch-mode flag.
	SetWatch(on bool)
	// Dispose clears the surface when the session goes away.
	Dispose()
}

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	portStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	watchOn    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Render("watch:on")
	watchOff   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("watch:off")
	offline    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("offline")
)

// Console renders a one-line styled status to a writer.
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	port  string
	watch bool
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Refresh(portLabel string) {
	c.mu.Lock()
	c.port = portLabel
	c.render()
	c.mu.Unlock()
}

func (c *Console) SetWatch(on bool) {
	c.mu.Lock()
	c.watch = on
	c.render()
	c.mu.Unlock()
}

func (c *Console) Dispose() {
	c.mu.Lock()
	c.port = ""
	c.render()
	c.mu.Unlock()
}

func (c *Console) render() {
	state := offline
	if c.port != "" {
		state = portStyle.Render("port " + c.port)
	}
	w := watchOff
	if c.watch {
		w = watchOn
	}
	fmt.Fprintf(c.out, "%s %s %s\n", labelStyle.Render("OCP viewer"), state, w)
}

// Nop is a Surface that ignores everything. Handy default for tests and
// headless runs.
type Nop struct{}

func (Nop) Refresh(string) {}
func (Nop) SetWatch(bool)  {}
func (Nop) Dispose()       {}
