package runtime

import (
	"context"
	"sync"
)

// Task is the future of one dispatched operation. It settles exactly once,
// after every observer has seen the state the operation produced.
type Task struct {
	done chan struct{}
	once sync.Once
	req  Request
	err  error
}

func newTask() *Task {
	return &Task{done: make(chan struct{})}
}

func (t *Task) settle(req Request, err error) {
	t.once.Do(func() {
		t.req = req
		t.err = err
		close(t.done)
	})
}

// Done is closed once the task has settled.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Settled reports whether the task has settled without blocking.
func (t *Task) Settled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the task settles or ctx is done.
//
// A completed request is returned with a nil error, also when the operation
// failed with a domain error (see Request.Error). A non-nil error means the
// operation failed in a way the tree could not classify; the request is then
// still pending.
func (t *Task) Wait(ctx context.Context) (Request, error) {
	select {
	case <-t.done:
		return t.req, t.err
	case <-ctx.Done():
		return Request{}, ctx.Err()
	}
}

// Handle is returned by every operation. RequestID is known before the
// operation settles.
type Handle struct {
	RequestID RequestID
	Task      *Task
}

// Wait is shorthand for h.Task.Wait.
func (h Handle) Wait(ctx context.Context) (Request, error) {
	return h.Task.Wait(ctx)
}
