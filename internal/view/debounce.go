package view

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. The zero-config Debouncer uses the wall clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Debouncer coalesces bursts of calls into a single delayed invocation of
// its action, using the argument of the last call in the burst.
type Debouncer[T any] struct {
	action  func(T)
	delay   time.Duration
	clock   Clock
	logger  *slog.Logger
	onPanic func(any)

	mu    sync.Mutex
	timer Timer
	gen   uint64
}

type DebounceOption func(*debounceConfig)

type debounceConfig struct {
	clock   Clock
	logger  *slog.Logger
	onPanic func(any)
}

func WithClock(c Clock) DebounceOption {
	return func(cfg *debounceConfig) { cfg.clock = c }
}

func WithDebounceLogger(l *slog.Logger) DebounceOption {
	return func(cfg *debounceConfig) { cfg.logger = l }
}

// WithPanicHandler receives the value of a panic raised by the action after
// it has been logged.
func WithPanicHandler(f func(any)) DebounceOption {
	return func(cfg *debounceConfig) { cfg.onPanic = f }
}

func Debounce[T any](action func(T), delay time.Duration, opts ...DebounceOption) *Debouncer[T] {
	cfg := debounceConfig{clock: wallClock{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Debouncer[T]{
		action:  action,
		delay:   delay,
		clock:   cfg.clock,
		logger:  cfg.logger,
		onPanic: cfg.onPanic,
	}
}

// Call cancels the pending invocation, if any, and schedules action(arg)
// after the delay.
func (d *Debouncer[T]) Call(arg T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(gen, arg) })
}

// Stop cancels the pending invocation. It reports whether one was pending.
func (d *Debouncer[T]) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
	return true
}

func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer[T]) fire(gen uint64, arg T) {
	d.mu.Lock()
	// A timer whose Stop lost the race still runs; its generation is stale.
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("debounced action panicked", "panic", fmt.Sprint(r))
			if d.onPanic != nil {
				d.onPanic(r)
			}
		}
	}()
	d.action(arg)
}
