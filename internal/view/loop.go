package view

import (
	"context"
	"errors"
)

var ErrLoopStopped = errors.New("event loop stopped")

// EventLoop runs posted tasks one at a time, in posting order, on the
// goroutine that called Run. Every state mutation of a Controller happens
// on its loop.
type EventLoop struct {
	tasks chan func()
	done  chan struct{}
}

func NewEventLoop(buffer int) *EventLoop {
	return &EventLoop{
		tasks: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
}

// Post enqueues task. It blocks while the queue is full and drops the task
// once the loop has stopped.
func (l *EventLoop) Post(task func()) {
	select {
	case l.tasks <- task:
	case <-l.done:
	}
}

// Do runs task on the loop and waits for it to finish.
func (l *EventLoop) Do(ctx context.Context, task func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		task()
	}
	select {
	case l.tasks <- wrapped:
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes tasks until ctx is cancelled. It must be called once.
func (l *EventLoop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case task := <-l.tasks:
			task()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
