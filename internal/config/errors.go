package config

import (
	"errors"
	"fmt"
)

var (
	// ErrRead marks failures reading the config file (missing, unreadable).
	ErrRead = errors.New("read config")
	// ErrParse marks malformed content: syntax, missing keys, bad durations.
	ErrParse = errors.New("parse config")
	// ErrPoisoned is returned by every Store operation after a reader panicked
	// while holding the lock. Callers must treat it as fatal.
	ErrPoisoned = errors.New("config store poisoned")
)

// LoadError carries the failing path together with its kind (ErrRead or ErrParse).
// errors.Is matches both the kind and the underlying cause.
type LoadError struct {
	Path string
	Kind error
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("unable to load config %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() []error { return []error{e.Kind, e.Err} }

// ReloadError is reported once when every reload attempt failed.
// Err is the final attempt's error.
type ReloadError struct {
	Attempts int
	Err      error
}

func (e *ReloadError) Error() string {
	return fmt.Sprintf("config reload abandoned after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ReloadError) Unwrap() error { return e.Err }
