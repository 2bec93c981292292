// Package relay reacts to debug-adapter lifecycle events. While watch mode
// is on, every stop of the debuggee re-triggers a viewer render by
// evaluating the configured watch command inside the paused frame.
package relay

import (
	"log"

	"github.com/google/go-dap"
)

// The Python debuggee runs the CAD script on its main thread; the stack
// request always targets it.
const watchThreadID = 1

// evalContext asks the adapter for REPL semantics, so the watch command may
// have side effects (it renders, we ignore the value).
const evalContext = "repl"

// Requester issues requests into the paused process. Implemented by
// dapclient.Client; tests substitute a recorder.
type Requester interface {
	StackTrace(threadID int) ([]dap.StackFrame, error)
	Evaluate(expression string, frameID int, context string) error
}

// WatchSource is a single atomic read of the watch flag, taken at the
// moment a stop event fires.
type WatchSource interface {
	Watching() bool
}

// CommandSource yields the watch command, re-read on every stop so config
// edits apply without a restart.
type CommandSource interface {
	WatchCommand() string
}

// Tracker follows one attached debug session. Its handler runs on the
// session's read goroutine, so per-session handling is sequential; trackers
// for different sessions share nothing but the watch flag.
type Tracker struct {
	id       string
	watch    WatchSource
	commands CommandSource
	req      Requester

	// lastExpression caches the most recently injected command, for
	// logging and inspection only.
	lastExpression string
}

func NewTracker(id string, watch WatchSource, commands CommandSource, req Requester) *Tracker {
	return &Tracker{
		id:       id,
		watch:    watch,
		commands: commands,
		req:      req,
	}
}

func (t *Tracker) ID() string {
	return t.id
}

// LastExpression returns the command used by the most recent watch trigger.
func (t *Tracker) LastExpression() string {
	return t.lastExpression
}

// HandleMessage dispatches one decoded adapter message. Unknown kinds are
// ignored; the relay is otherwise idle.
func (t *Tracker) HandleMessage(msg dap.Message) {
	switch m := msg.(type) {
	case *dap.StoppedEvent:
		t.onStopped(m)
	case *dap.TerminatedEvent:
		// Tracker lifecycle is owned by the debug host; nothing to
		// clean up here.
		log.Printf("debug session %s terminated", t.id)
	}
}

// onStopped runs one watch trigger. Failures are local to this attempt:
// logged, swallowed, and the next stop starts fresh.
func (t *Tracker) onStopped(ev *dap.StoppedEvent) {
	if !t.watch.Watching() {
		return
	}

	expr := t.commands.WatchCommand()
	t.lastExpression = expr

	frames, err := t.req.StackTrace(watchThreadID)
	if err != nil {
		log.Printf("debug session %s: stack trace failed: %v", t.id, err)
		return
	}
	if len(frames) == 0 {
		log.Printf("debug session %s: stopped (%s) with no frames", t.id, ev.Body.Reason)
		return
	}

	if err := t.req.Evaluate(expr, frames[0].Id, evalContext); err != nil {
		log.Printf("debug session %s: watch evaluate failed: %v", t.id, err)
	}
}
