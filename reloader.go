package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"
)

// ErrAlreadyWatching is returned when Watch is called more than once.
var ErrAlreadyWatching = errors.New("reloader already started")

var errStreamClosed = errors.New("watcher event stream closed")

// The reloader always watches the tree under the working directory.
const watchRoot = "."

// State is the lifecycle state of a Reloader.
type State int32

const (
	Idle State = iota
	Watching
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Watching:
		return "watching"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Reload describes one handled modification event.
type Reload struct {
	Path string
	At   time.Time
	PID  int
	Err  error
}

// Option configures a Reloader.
type Option func(*Reloader)

// WithObserver registers fn to be called after each reload attempt.
func WithObserver(fn func(Reload)) Option {
	return func(r *Reloader) { r.observer = fn }
}

// Reloader re-launches the input script whenever a watched file is modified.
type Reloader struct {
	settings *Settings
	delay    time.Duration
	ignore   *IgnoreSet
	spawner  Spawner
	logger   *slog.Logger
	observer func(Reload)
	state    atomic.Int32
}

// NewReloader validates settings and prepares a Reloader in the Idle state.
// A nil logger discards log output and a nil spawner runs the script with
// an ExecSpawner attached to the process's stdout and stderr.
func NewReloader(settings *Settings, logger *slog.Logger, spawner Spawner, opts ...Option) (*Reloader, error) {
	if settings == nil {
		return nil, errors.New("invalid settings: nil")
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	ignore, err := NewIgnoreSet(settings.Ignore, settings.IgnorePatterns)
	if err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if spawner == nil {
		spawner = &ExecSpawner{
			Interpreter: settings.Interpreter,
			Stdout:      os.Stdout,
			Stderr:      os.Stderr,
		}
	}

	r := &Reloader{
		settings: settings,
		delay:    settings.Delay(),
		ignore:   ignore,
		spawner:  spawner,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// State returns the current lifecycle state.
func (r *Reloader) State() State {
	return State(r.state.Load())
}

// Watch subscribes to the working directory tree and handles events until
// ctx is cancelled. Events are handled one at a time on the calling
// goroutine; an event being handled when ctx is cancelled runs to completion
// before Watch returns.
func (r *Reloader) Watch(ctx context.Context, sub Subscriber) error {
	if !r.state.CompareAndSwap(int32(Idle), int32(Watching)) {
		return ErrAlreadyWatching
	}

	s, err := sub.Subscribe(watchRoot, true)
	if err != nil {
		r.state.Store(int32(Stopped))
		if errors.Is(err, ErrWatcherRegistration) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrWatcherRegistration, err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			r.logger.Warn("close watcher", "err", err)
		}
		r.state.Store(int32(Stopped))
	}()

	r.logger.Info("watching for changes",
		"input", r.settings.Input,
		"delay", r.delay,
		"ignored", r.ignore.Len())

	events, errs := s.Events(), s.Errors()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stopped watching")
			return nil
		case path, ok := <-events:
			if !ok {
				return errStreamClosed
			}
			r.OnFileEvent(path)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			r.logger.Warn("watcher error", "err", err)
		}
	}
}

// OnFileEvent handles a modification of path. Ignored paths are dropped.
// Any other path is logged, then after the debounce delay a new instance
// of the input script is started. Spawn failures are logged and otherwise
// swallowed.
func (r *Reloader) OnFileEvent(path string) {
	normalized := normalizePath(path)
	if r.ignore.Match(normalized) {
		return
	}

	r.logger.Info("reloading", "path", normalized)
	time.Sleep(r.delay)

	rec := Reload{Path: normalized, At: time.Now()}
	pid, err := r.spawner.Spawn(r.settings.Input)
	if err != nil {
		r.logger.Error("reload failed", "input", r.settings.Input, "err", err)
		rec.Err = err
	} else {
		r.logger.Debug("spawned", "input", r.settings.Input, "pid", pid)
		rec.PID = pid
	}

	if r.observer != nil {
		r.observer(rec)
	}
}
