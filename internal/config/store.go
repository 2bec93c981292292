package config

import (
	"log"
	"sync"
)

// Store hands out the current configuration and re-reads it from disk on
// demand. The debug relay asks for the watch command on every pause event,
// so edits to the config file take effect without a restart.
type Store struct {
	mu   sync.RWMutex
	path string
	cfg  *Config
}

func NewStore(path string, cfg *Config) *Store {
	if cfg == nil {
		cfg = defaults()
	}
	return &Store{path: path, cfg: cfg}
}

// Current re-reads the config file and returns the result. On a read or
// parse failure the last good config is returned instead; a viewer session
// should not die because the user is mid-edit in the YAML file.
func (s *Store) Current() *Config {
	fresh, err := Load(s.path)
	if err != nil {
		log.Printf("config reload failed, keeping last good: %v", err)
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.cfg
	}

	s.mu.Lock()
	s.cfg = fresh
	s.mu.Unlock()
	return fresh
}

// Last returns the most recently loaded config without touching disk.
func (s *Store) Last() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Path returns the config file location the store watches.
func (s *Store) Path() string {
	return s.path
}

// WatchCommand re-reads the config and returns the watch-trigger
// expression. Called by the debug relay on every pause event.
func (s *Store) WatchCommand() string {
	return s.Current().Watch.Command
}
