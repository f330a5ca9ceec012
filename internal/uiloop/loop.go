// Package uiloop provides the single goroutine that owns all map state.
//
// Tasks posted to a Loop run one at a time in the order they were accepted.
// State touched only from inside tasks needs no further synchronization.
// Blocking work (network calls) must never run inside a task; run it on its
// own goroutine and Post the result back.
package uiloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrStopped is returned when a task is offered to a loop that has exited.
var ErrStopped = errors.New("ui loop stopped")

// Loop is a serial task executor.
type Loop struct {
	tasks    chan func()
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a loop whose queue holds up to buffer pending tasks.
func New(buffer int) *Loop {
	return &Loop{
		tasks: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
}

// Run executes tasks until ctx is cancelled. Tasks still queued at that point
// are dropped.
func (l *Loop) Run(ctx context.Context) {
	defer l.stop()
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post queues fn without waiting for it to run. It blocks while the queue is
// full and returns false if the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish. It must not be called
// from inside a task.
//
// A nil error means fn ran. If ctx ends before fn starts, fn is abandoned
// and never runs; once fn has started, Do waits for it regardless of ctx.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	var state atomic.Int32 // taskPending, taskStarted or taskAbandoned
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		if !state.CompareAndSwap(taskPending, taskStarted) {
			return
		}
		fn()
	}

	select {
	case l.tasks <- task:
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
	case <-l.done:
	case <-ctx.Done():
		if state.CompareAndSwap(taskPending, taskAbandoned) {
			return ctx.Err()
		}
		// Already running; the loop finishes it before taking another task.
		select {
		case <-finished:
		case <-l.done:
		}
	}

	select {
	case <-finished:
		return nil
	default:
	}
	// The loop stopped. Claim the task so it cannot run late.
	if state.CompareAndSwap(taskPending, taskAbandoned) {
		return ErrStopped
	}
	<-finished
	return nil
}

const (
	taskPending int32 = iota
	taskStarted
	taskAbandoned
)

func (l *Loop) stop() {
	l.stopOnce.Do(func() { close(l.done) })
}
