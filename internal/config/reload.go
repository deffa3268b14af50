package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "batteryfriend/pkg/logx"
)

const (
	// DefaultReloadAttempts bounds retries for one change event. Editors often
	// truncate then write, so the first read may see an empty or partial file.
	DefaultReloadAttempts = 10
	DefaultReloadBackoff  = 10 * time.Millisecond
)

var errWatcherClosed = errors.New("config watcher closed")

// Reloader reacts to changes of the config file and swaps the Store's
// contents on a successful reload.
type Reloader struct {
	path  string
	store *Store
	log   logx.Logger

	attempts int
	backoff  time.Duration
	load     func(path string) (*Config, error)
	onReload func(old, cur *Config)
	onFail   func(err error)
}

type ReloaderOption func(*Reloader)

func WithReloadLogger(log logx.Logger) ReloaderOption {
	return func(r *Reloader) { r.log = log }
}

// WithRetry overrides the attempt bound and the fixed pause between attempts.
func WithRetry(attempts int, backoff time.Duration) ReloaderOption {
	return func(r *Reloader) {
		if attempts > 0 {
			r.attempts = attempts
		}
		if backoff >= 0 {
			r.backoff = backoff
		}
	}
}

// WithLoader replaces the file loader (Load by default).
func WithLoader(fn func(path string) (*Config, error)) ReloaderOption {
	return func(r *Reloader) {
		if fn != nil {
			r.load = fn
		}
	}
}

// WithOnReload installs a hook that runs after a new config was installed.
// It runs on the watcher goroutine and must not block for long.
func WithOnReload(fn func(old, cur *Config)) ReloaderOption {
	return func(r *Reloader) { r.onReload = fn }
}

// WithOnFailure installs a hook that runs once per abandoned reload.
func WithOnFailure(fn func(err error)) ReloaderOption {
	return func(r *Reloader) { r.onFail = fn }
}

func NewReloader(path string, store *Store, opts ...ReloaderOption) *Reloader {
	r := &Reloader{
		path:     path,
		store:    store,
		log:      logx.Nop(),
		attempts: DefaultReloadAttempts,
		backoff:  DefaultReloadBackoff,
		load:     Load,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Reload loads the config file, retrying read and parse failures up to the
// attempt bound. It reports whether the active configuration changed.
//
// When every attempt fails the previous configuration stays active and a
// *ReloadError carrying only the final attempt's error is returned.
// ErrPoisoned is returned as-is and is fatal.
func (r *Reloader) Reload(ctx context.Context) (bool, error) {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		cfg, err := r.load(r.path)
		if err == nil {
			return r.commit(cfg)
		}
		lastErr = err
		r.log.Debug("config reload attempt failed",
			logx.String("path", r.path),
			logx.Int("attempt", attempt),
			logx.Err(err),
		)
		if attempt == r.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(r.backoff):
		}
	}
	return false, &ReloadError{Attempts: r.attempts, Err: lastErr}
}

func (r *Reloader) commit(cfg *Config) (bool, error) {
	old, err := r.store.Snapshot()
	if err != nil {
		return false, err
	}
	// Skip redundant swaps when an editor produces several writes without content changes.
	if h := hashConfig(cfg); h != 0 && h == r.store.Hash() {
		return false, nil
	}
	if err := r.store.Replace(cfg); err != nil {
		return false, err
	}
	if r.onReload != nil {
		r.onReload(old, cfg)
	}
	return true, nil
}

// Watch subscribes to the config file's parent directory and reloads on data
// changes to the file until ctx is canceled.
//
// It returns an error when the underlying watcher breaks so the caller can
// restart it, and ErrPoisoned when the store became unusable.
func (r *Reloader) Watch(ctx context.Context) error {
	dir := filepath.Dir(r.path)
	file := filepath.Base(r.path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watch init: %w", err)
	}
	defer func() { _ = w.Close() }()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("config watch add %s: %w", dir, err)
	}
	r.log.Debug("config watcher started", logx.String("dir", dir), logx.String("file", file))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return errWatcherClosed
			}
			if !isConfigChange(ev, file) {
				continue
			}
			r.log.Debug("config change detected", logx.String("path", r.path), logx.String("op", ev.Op.String()))
			if err := r.reloadAndReport(ctx); err != nil {
				return err
			}
		case err, ok := <-w.Errors:
			if !ok {
				return errWatcherClosed
			}
			if err == nil {
				continue
			}
			// Overflow means we may have missed events; reload once and keep going.
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				r.log.Warn("config watch overflow; forcing reload", logx.Err(err), logx.String("dir", dir))
				if err := r.reloadAndReport(ctx); err != nil {
					return err
				}
				continue
			}
			r.log.Warn("config watch error", logx.Err(err), logx.String("dir", dir))
		}
	}
}

// reloadAndReport only returns errors that should stop the watcher.
func (r *Reloader) reloadAndReport(ctx context.Context) error {
	changed, err := r.Reload(ctx)
	switch {
	case errors.Is(err, ErrPoisoned):
		return err
	case err != nil && ctx.Err() != nil:
		return nil
	case err != nil:
		r.log.Warn("config reload failed; keeping previous config", logx.String("path", r.path), logx.Err(err))
		if r.onFail != nil {
			r.onFail(err)
		}
	case changed:
		r.log.Debug("config swapped", logx.String("path", r.path))
	default:
		r.log.Debug("config unchanged; skipping swap", logx.String("path", r.path))
	}
	return nil
}

// isConfigChange reports whether ev is a data change of the config file.
// Permission-only changes, removals, renames and other files are ignored.
func isConfigChange(ev fsnotify.Event, file string) bool {
	if filepath.Base(ev.Name) != file {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)
}
