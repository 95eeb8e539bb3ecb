package schema

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"
)

// Store holds the current schema version. Readers take a snapshot with Load
// and keep using it even if a newer version is swapped in meanwhile.
type Store struct {
	cur     atomic.Pointer[Schema]
	version atomic.Uint64
}

// NewStore returns a store holding s.
func NewStore(s *Schema) *Store {
	st := &Store{}
	st.Swap(s)
	return st
}

// Load returns the current schema.
func (st *Store) Load() *Schema {
	return st.cur.Load()
}

// Version returns the number of schemas published so far.
func (st *Store) Version() uint64 {
	return st.version.Load()
}

// Swap publishes a fully built schema and returns the previous one.
func (st *Store) Swap(s *Schema) *Schema {
	if s == nil {
		panic("schema: swap of nil schema")
	}
	prev := st.cur.Swap(s)
	st.version.Add(1)
	return prev
}

// WatchOption configures Watch.
type WatchOption func(*watcher)

// WithLogger sets the logger reloads are reported to.
func WithLogger(l *slog.Logger) WatchOption {
	return func(w *watcher) {
		w.log = l
	}
}

// WithOptions sets the options every reload builds the schema with.
func WithOptions(opts ...Option) WatchOption {
	return func(w *watcher) {
		w.opts = opts
	}
}

// WithReloadHook sets a function called after every reload attempt.
func WithReloadHook(f func(*Schema, error)) WatchOption {
	return func(w *watcher) {
		w.hook = f
	}
}

type watcher struct {
	store *Store
	path  string
	opts  []Option
	log   *slog.Logger
	hook  func(*Schema, error)
	group singleflight.Group
}

// Watch reloads the SDL file at path whenever it changes and swaps the new
// schema into st. A file that fails to build is logged and the previous
// version stays in place. Bursts of events collapse into one rebuild. Watch
// blocks until ctx is done.
func Watch(ctx context.Context, st *Store, path string, opts ...WatchOption) error {
	w := &watcher{store: st, path: filepath.Clean(path), log: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("schema: watch: %w", err)
	}
	defer fw.Close()
	// Editors replace files by rename, so watch the directory.
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("schema: watch %s: %w", path, err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			go w.reload()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("schema watch error", "path", w.path, "error", err)
		}
	}
}

func (w *watcher) reload() {
	v, err, _ := w.group.Do(w.path, func() (any, error) {
		return Load(w.path, w.opts...)
	})
	var s *Schema
	if err == nil {
		s = v.(*Schema)
		w.store.Swap(s)
		w.log.Info("schema reloaded", "path", w.path, "version", w.store.Version(), "types", len(s.Types))
	} else {
		w.log.Error("schema reload failed, keeping previous version", "path", w.path, "error", err)
	}
	if w.hook != nil {
		w.hook(s, err)
	}
}
