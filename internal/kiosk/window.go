// Package kiosk is the in-process client a seat GUI uses to reach the data
// façade without blocking its event loop.  Every call runs on its own
// goroutine and delivers one Result on a channel.  Calls belong to a Window;
// closing the window cancels whatever is still in flight.
package kiosk

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrWindowClosed is delivered for calls started on a closed window.
var ErrWindowClosed = errors.New("kiosk window closed")

// Result carries the outcome of one asynchronous call.
type Result[T any] struct {
	Value T
	Err   error
}

// Window scopes a group of calls to the lifetime of one GUI window.
type Window struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	g      errgroup.Group
}

// NewWindow opens a window under parent.  timeout bounds each call; zero
// means no per-call limit.
func NewWindow(parent context.Context, timeout time.Duration) *Window {
	ctx, cancel := context.WithCancel(parent)
	return &Window{ctx: ctx, cancel: cancel, timeout: timeout}
}

// Close cancels every pending call and waits for their goroutines to
// return.  Results of cancelled calls are still delivered.
func (w *Window) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.cancel()
	_ = w.g.Wait()
}

// Go runs fn on a new goroutine under w and returns the channel its Result
// is delivered on.  The channel is buffered, so an abandoned result never
// blocks the worker.
func Go[T any](w *Window, fn func(ctx context.Context) (T, error)) <-chan Result[T] {
	out := make(chan Result[T], 1)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		out <- Result[T]{Err: ErrWindowClosed}
		close(out)
		return out
	}
	w.g.Go(func() error {
		defer close(out)
		ctx := w.ctx
		if w.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, w.timeout)
			defer cancel()
		}
		v, err := fn(ctx)
		out <- Result[T]{Value: v, Err: err}
		return nil
	})
	return out
}
