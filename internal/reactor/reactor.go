// Package reactor watches the environment configuration and invalidates the
// running session when the interpreter changes. An interpreter switch voids
// every assumption the session made about the Python side, so the policy is
// blunt: re-resolve the library registry, then dispose session and panels.
package reactor

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ocp-viewer/bridge/internal/config"
	"github.com/ocp-viewer/bridge/internal/pyenv"
)

// LibraryRegistry re-resolves installed-package state against a new
// interpreter.
type LibraryRegistry interface {
	Resolve(interpreter string)
}

// SessionDisposer tears down the active session. Implemented by
// session.Controller.
type SessionDisposer interface {
	Dispose()
}

// PanelDisposer tears down all visualization panels. Implemented by
// panel.Hub.
type PanelDisposer interface {
	DisposeAll()
}

const defaultDebounce = 200 * time.Millisecond

type Reactor struct {
	store    *config.Store
	registry LibraryRegistry
	sessions SessionDisposer
	panels   PanelDisposer
	debounce time.Duration

	// interpreter last seen; only a change triggers invalidation, so
	// unrelated config edits (the watch command) leave the session alone.
	interpreter string
}

func New(store *config.Store, registry LibraryRegistry, sessions SessionDisposer, panels PanelDisposer) *Reactor {
	return &Reactor{
		store:       store,
		registry:    registry,
		sessions:    sessions,
		panels:      panels,
		debounce:    defaultDebounce,
		interpreter: pyenv.Resolve(store.Last().Python.Interpreter),
	}
}

// Sync re-resolves the interpreter and, if it changed, applies the
// invalidation exactly once. Returns whether an invalidation ran.
func (r *Reactor) Sync() bool {
	next := pyenv.Resolve(r.store.Current().Python.Interpreter)
	if next == r.interpreter {
		return false
	}

	log.Printf("interpreter changed: %s -> %s", r.interpreter, next)
	r.interpreter = next
	r.registry.Resolve(next)
	r.sessions.Dispose()
	r.panels.DisposeAll()
	return true
}

// Run watches the config file until ctx ends. File events are debounced:
// editors fire several events per save, and one save must invalidate at
// most once.
func (r *Reactor) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors replace files on save, which drops
	// a watch placed on the file itself.
	if err := watcher.Add(filepath.Dir(r.store.Path())); err != nil {
		return err
	}
	target := filepath.Base(r.store.Path())

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(r.debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("config watcher: %v", err)
		case <-pending:
			pending = nil
			r.Sync()
		}
	}
}
