package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 100 * time.Millisecond

// WatchOption configures Watch.
type WatchOption func(*watchOptions)

type watchOptions struct {
	debounce time.Duration
}

// WithDebounce sets the debounce duration for rapid changes.
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		if d >= 0 {
			o.debounce = d
		}
	}
}

// Watch reloads the config file at path whenever it is written, created or
// renamed into place, and passes the result to onChange. Failed reloads go to
// onError and leave the previous configuration active. The parent directory
// is watched so that editors replacing the file are noticed.
//
// Watch returns once the watch is established; it stops when ctx is done.
func Watch(ctx context.Context, path string, onChange func(*Config), onError func(error), opts ...WatchOption) error {
	o := watchOptions{debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(&o)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		fsw.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(absPath), err)
	}

	w := &watcher{
		path:     absPath,
		fsw:      fsw,
		debounce: o.debounce,
		onChange: onChange,
		onError:  onError,
	}
	go w.loop(ctx)
	return nil
}

type watcher struct {
	path     string
	fsw      *fsnotify.Watcher
	debounce time.Duration
	onChange func(*Config)
	onError  func(error)
}

func (w *watcher) loop(ctx context.Context) {
	defer w.fsw.Close()

	// timer is armed only while a reload is pending.
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			if w.debounce == 0 {
				w.reload()
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.report(fmt.Errorf("config watcher: %w", err))

		case <-timer.C:
			w.reload()
		}
	}
}

// relevant reports whether ev changes the contents of the watched file.
// Removal is ignored: the last good configuration stays active.
func (w *watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

func (w *watcher) reload() {
	// Renamed away or mid-replace; wait for the file to reappear.
	if _, err := os.Stat(w.path); os.IsNotExist(err) {
		return
	}
	cfg, err := Load(w.path)
	if err != nil {
		w.report(err)
		return
	}
	w.safeCall(func() { w.onChange(cfg) })
}

func (w *watcher) report(err error) {
	if w.onError == nil {
		return
	}
	w.safeCall(func() { w.onError(err) })
}

// safeCall runs fn, recovering from a panic so the watch loop keeps running.
func (w *watcher) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil && w.onError != nil {
			w.onError(fmt.Errorf("config handler panic: %v", r))
		}
	}()
	fn()
}
