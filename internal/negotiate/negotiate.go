// Package negotiate finds a bindable port for a new viewer session,
// prompting the user for replacements when the requested port is taken.
package negotiate

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/ocp-viewer/bridge/internal/config"
	"github.com/ocp-viewer/bridge/internal/session"
)

// User-supplied replacement ports must fall in this inclusive range.
const (
	PortMin = 1024
	PortMax = 49151
)

// ErrCancelled reports that the user dismissed the port prompt. Negotiation
// unwinds cleanly: no session, no error dialog.
var ErrCancelled = errors.New("port negotiation cancelled")

// ErrNoScript reports the missing-precondition case: there is no CAD script
// to serve, so negotiation never touches a port.
var ErrNoScript = errors.New("no CAD script configured")

// State names the phases of the negotiation loop.
type State int

const (
	TryDefault State = iota
	PromptForPort
	Bound
	Cancelled
)

// Starter binds a session on a port. session.ErrPortInUse is the only
// failure that keeps the loop going.
type Starter interface {
	Start(port int) (*session.Session, error)
}

// Prompter asks the user for a replacement port and returns the raw entry.
// It returns ErrCancelled when the user dismisses the prompt.
type Prompter interface {
	PromptPort() (string, error)
}

// Notifier carries user-visible notifications out of the core.
type Notifier interface {
	Warn(msg string)
	Error(msg string)
}

// ValidatePort parses a user entry and enforces the [PortMin, PortMax]
// range. Rejected entries never reach a bind attempt.
func ValidatePort(entry string) (int, error) {
	port, err := strconv.Atoi(entry)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", entry)
	}
	if port < PortMin || port > PortMax {
		return 0, fmt.Errorf("port must be between %d and %d", PortMin, PortMax)
	}
	return port, nil
}

type Negotiator struct {
	starter  Starter
	prompter Prompter
	notifier Notifier
	// focus brings the originating script/session into view after a
	// successful bind. Best effort, may be nil.
	focus func()
}

func New(starter Starter, prompter Prompter, notifier Notifier, focus func()) *Negotiator {
	return &Negotiator{
		starter:  starter,
		prompter: prompter,
		notifier: notifier,
		focus:    focus,
	}
}

// Negotiate runs the retry loop: bind the initial port directly, and on a
// conflict prompt for replacements until a bind succeeds or the user
// cancels. There is deliberately no iteration cap.
func (n *Negotiator) Negotiate(initialPort int, scriptPath string) (*session.Session, error) {
	if err := checkScript(scriptPath); err != nil {
		n.notifier.Error(err.Error())
		return nil, err
	}

	state := TryDefault
	port := initialPort

	for {
		if state == PromptForPort {
			entry, err := n.prompter.PromptPort()
			if err != nil {
				if errors.Is(err, ErrCancelled) {
					log.Printf("port negotiation cancelled by user")
					return nil, ErrCancelled
				}
				return nil, err
			}
			p, verr := ValidatePort(entry)
			if verr != nil {
				// Rejected before any bind attempt; ask again.
				n.notifier.Error(verr.Error())
				continue
			}
			port = p
		}

		sess, err := n.starter.Start(port)
		if err == nil {
			n.announce(port)
			return sess, nil
		}
		if errors.Is(err, session.ErrPortInUse) {
			log.Printf("port %d in use, restarting viewer negotiation", port)
			state = PromptForPort
			continue
		}
		// Any other startup failure is fatal to this operation.
		n.notifier.Error(fmt.Sprintf("viewer start failed: %v", err))
		return nil, err
	}
}

func (n *Negotiator) announce(port int) {
	if n.focus != nil {
		n.focus()
	}
	if port != config.DefaultPort {
		n.notifier.Warn(fmt.Sprintf(
			"viewer bound to port %d instead of %d; run set_port(%d) on the Python side",
			port, config.DefaultPort, port))
	}
	log.Printf("viewer ready on port %d", port)
}

func checkScript(path string) error {
	if path == "" {
		return ErrNoScript
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", ErrNoScript, path)
	}
	return nil
}
