// Package watch holds the process-wide watch-mode flag. When on, every
// debugger pause re-triggers a viewer render by evaluating the configured
// watch command inside the paused frame.
package watch

import "sync/atomic"

// Indicator is notified after every state change so a status surface can
// reflect the current mode. May be nil.
type Indicator func(on bool)

// Toggle is a single shared flag, independent of session lifetime. Debug
// relays read it with one atomic load per pause event; only the explicit
// user action mutates it.
type Toggle struct {
	on        atomic.Bool
	indicator Indicator
}

func NewToggle(initial bool, indicator Indicator) *Toggle {
	t := &Toggle{indicator: indicator}
	t.on.Store(initial)
	if indicator != nil {
		indicator(initial)
	}
	return t
}

// Toggle flips the flag and returns the new state.
func (t *Toggle) Toggle() bool {
	var now bool
	for {
		prev := t.on.Load()
		now = !prev
		if t.on.CompareAndSwap(prev, now) {
			break
		}
	}
	if t.indicator != nil {
		t.indicator(now)
	}
	return now
}

// Watching reports the current state. An in-flight watch trigger that
// already read true is unaffected by a concurrent toggle.
func (t *Toggle) Watching() bool {
	return t.on.Load()
}
