package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrWatcherRegistration is returned when a directory tree cannot be
// subscribed to.
var ErrWatcherRegistration = errors.New("watcher registration failed")

// Subscriber subscribes to modification events under a directory tree.
type Subscriber interface {
	Subscribe(root string, recursive bool) (Subscription, error)
}

// Subscription delivers the paths of modified files until closed. Both
// channels are closed once the subscription stops.
type Subscription interface {
	Events() <-chan string
	Errors() <-chan error
	Close() error
}

// FSNotify subscribes through native filesystem notifications.
type FSNotify struct{}

// Subscribe implements Subscriber.
func (FSNotify) Subscribe(root string, recursive bool) (Subscription, error) {
	return NewWatcher(root, recursive)
}

// Watcher wraps fsnotify to watch for file modifications
type Watcher struct {
	watcher   *fsnotify.Watcher
	recursive bool
	events    chan string
	errors    chan error
	done      chan struct{}
	closeOnce sync.Once
}

// NewWatcher creates a file watcher for the given directory
func NewWatcher(dir string, recursive bool) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherRegistration, err)
	}

	w := &Watcher{
		watcher:   fsWatcher,
		recursive: recursive,
		events:    make(chan string),
		errors:    make(chan error),
		done:      make(chan struct{}),
	}

	if recursive {
		err = w.addRecursive(dir)
	} else {
		err = fsWatcher.Add(dir)
	}
	if err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrWatcherRegistration, dir, err)
	}

	go w.run()

	return w, nil
}

// addRecursive adds dir and all its subdirectories. Only an error on dir
// itself is returned; unreadable subdirectories are skipped.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		return w.watcher.Add(path)
	})
}

// addCreated registers a directory created after subscribing. Failures go
// to the error stream. It returns false once the watcher is closed.
func (w *Watcher) addCreated(dir string) bool {
	err := w.addRecursive(dir)
	if err == nil {
		return true
	}
	select {
	case w.errors <- fmt.Errorf("watch %s: %w", dir, err):
		return true
	case <-w.done:
		return false
	}
}

// run forwards write events from fsnotify
func (w *Watcher) run() {
	defer close(w.errors)
	defer close(w.events)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// New directories have to be added by hand
			if w.recursive && event.Has(fsnotify.Create) {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() && !w.addCreated(event.Name) {
					return
				}
			}

			if !event.Has(fsnotify.Write) {
				continue
			}
			select {
			case w.events <- event.Name:
			case <-w.done:
				return
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			case <-w.done:
				return
			}
		case <-w.done:
			return
		}
	}
}

// Events implements Subscription.
func (w *Watcher) Events() <-chan string { return w.events }

// Errors implements Subscription.
func (w *Watcher) Errors() <-chan error { return w.errors }

// Close stops the watcher
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

// Poller subscribes by periodically comparing file modification times and
// sizes. It serves filesystems without native notifications, such as some
// network mounts and container volumes.
type Poller struct {
	Interval time.Duration
}

const defaultPollInterval = 500 * time.Millisecond

// Subscribe implements Subscriber.
func (p Poller) Subscribe(root string, recursive bool) (Subscription, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherRegistration, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrWatcherRegistration, root)
	}

	interval := p.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	s := &pollSubscription{
		root:      root,
		recursive: recursive,
		interval:  interval,
		events:    make(chan string),
		errors:    make(chan error),
		done:      make(chan struct{}),
	}
	s.stamps = s.scan()
	go s.run()
	return s, nil
}

type fileStamp struct {
	modTime time.Time
	size    int64
}

type pollSubscription struct {
	root      string
	recursive bool
	interval  time.Duration
	stamps    map[string]fileStamp
	events    chan string
	errors    chan error
	done      chan struct{}
	closeOnce sync.Once
}

func (s *pollSubscription) run() {
	defer close(s.errors)
	defer close(s.events)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		current := s.scan()
		var modified []string
		for path, stamp := range current {
			prev, ok := s.stamps[path]
			if ok && (!prev.modTime.Equal(stamp.modTime) || prev.size != stamp.size) {
				modified = append(modified, path)
			}
		}
		s.stamps = current
		sort.Strings(modified)

		for _, path := range modified {
			select {
			case s.events <- path:
			case <-s.done:
				return
			}
		}
	}
}

// scan records the stamp of every regular file under the root.
func (s *pollSubscription) scan() map[string]fileStamp {
	stamps := make(map[string]fileStamp)
	_ = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if !s.recursive && path != s.root {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.Mode().IsRegular() {
			return nil
		}
		stamps[path] = fileStamp{modTime: info.ModTime(), size: info.Size()}
		return nil
	})
	return stamps
}

func (s *pollSubscription) Events() <-chan string { return s.events }

func (s *pollSubscription) Errors() <-chan error { return s.errors }

func (s *pollSubscription) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}
