package config

import (
	"errors"
	"sync"
	"sync/atomic"
)

// Store holds the live configuration for the daemon's lifetime.
//
// Readers get the current *Config under a read lock and keep using it after
// the lock is released; the value is never mutated in place, so a reader sees
// either the entire old or the entire new configuration. Replace swaps the
// pointer under the write lock.
//
// Go's RWMutex does not record panics, so Store does: a panic inside View
// marks the store poisoned and every later call returns ErrPoisoned.
type Store struct {
	mu   sync.RWMutex
	cfg  *Config
	hash uint64

	poisoned atomic.Bool
}

func NewStore(cfg *Config) *Store {
	return &Store{cfg: cfg, hash: hashConfig(cfg)}
}

// Snapshot returns the current configuration.
func (s *Store) Snapshot() (*Config, error) {
	if s.poisoned.Load() {
		return nil, ErrPoisoned
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.poisoned.Load() {
		return nil, ErrPoisoned
	}
	return s.cfg, nil
}

// View runs fn with the current configuration while holding the read lock.
// Replace blocks until fn returns.
func (s *Store) View(fn func(cfg *Config) error) error {
	if s.poisoned.Load() {
		return ErrPoisoned
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	defer func() {
		if r := recover(); r != nil {
			s.poisoned.Store(true)
			panic(r)
		}
	}()
	if s.poisoned.Load() {
		return ErrPoisoned
	}
	return fn(s.cfg)
}

// Replace installs cfg as the current configuration.
func (s *Store) Replace(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: refusing to install nil config")
	}
	h := hashConfig(cfg)
	if s.poisoned.Load() {
		return ErrPoisoned
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.poisoned.Load() {
		return ErrPoisoned
	}
	s.cfg = cfg
	s.hash = h
	return nil
}

// Hash returns the content hash of the current configuration.
func (s *Store) Hash() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hash
}
