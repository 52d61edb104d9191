package runtime

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/statetree/internal/runtime/jsonapi"
	"github.com/drblury/statetree/internal/runtime/logging"
)

const (
	kindUpdate = "update"
	kindQuery  = "query"
)

type call struct {
	operation string
	kind      string
	target    jsonapi.Identity
	run       func(ctx context.Context) (jsonapi.Document, error)
}

// dispatch opens a request, commits it as pending and runs the store call on
// its own goroutine. The returned handle is valid immediately.
func (t *StateTree) dispatch(ctx context.Context, c call) Handle {
	task := newTask()
	t.inflight.add()

	t.mu.Lock()
	req := t.ledger.Open(t.now())
	delta := Delta{Requests: map[RequestID]Request{req.ID: req}}
	t.snapshot = Merge(t.snapshot, delta)
	t.notifier.enqueue(emission{snapshot: t.snapshot, delta: delta, requestID: req.ID})
	t.mu.Unlock()
	t.notifier.drain()

	rc := RequestContext{
		RequestID: req.ID,
		Operation: c.operation,
		Kind:      c.kind,
		Target:    c.target,
		StartedAt: req.Timestamp,
		Context:   ctx,
	}
	t.runHook("start", req.ID, func() { t.hooks.start(rc) })

	storeCtx, span := startRequestSpan(context.WithoutCancel(ctx), t.tracer, rc)
	go t.settle(storeCtx, span, c, req, rc, task)

	return Handle{RequestID: req.ID, Task: task}
}

func (t *StateTree) settle(ctx context.Context, span trace.Span, c call, req Request, rc RequestContext, task *Task) {
	doc, err := t.runStore(ctx, c)
	now := t.now()
	rc.Duration = now.Sub(rc.StartedAt)

	if err == nil {
		done := t.ledger.Succeed(req, jsonapi.IDsByType(doc), now)
		rc.Outcome = OutcomeSucceeded
		endRequestSpan(span, rc.Outcome, nil)
		t.commit(req.ID, Delta{
			Entities: jsonapi.Normalize(doc),
			Requests: map[RequestID]Request{req.ID: done},
		}, t.finisher(task, done, nil, "done", func() { t.hooks.done(rc) }))
		return
	}

	if recordErr, ok := t.classify(err); ok {
		failed := t.ledger.Fail(req, newRequestError(recordErr), now)
		rc.Outcome = OutcomeFailed
		endRequestSpan(span, rc.Outcome, nil)
		t.commit(req.ID, Delta{
			Requests: map[RequestID]Request{req.ID: failed},
		}, t.finisher(task, failed, nil, "done", func() { t.hooks.done(rc) }))
		return
	}

	rc.Outcome = OutcomeUnhandled
	endRequestSpan(span, rc.Outcome, err)
	t.reportUnhandled(req.ID, err, t.finisher(task, req, err, "error", func() { t.hooks.fail(rc, err) }))
}

// runStore converts a panicking store into an unhandled error.
func (t *StateTree) runStore(ctx context.Context, c call) (doc jsonapi.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("statetree: store panicked during %s: %v", c.operation, r)
		}
	}()
	return c.run(ctx)
}

// finisher runs after observers have seen the outcome. The hook reads the
// committed snapshot; the task settles after it.
func (t *StateTree) finisher(task *Task, req Request, err error, hookName string, hook func()) func() {
	return func() {
		t.runHook(hookName, req.ID, hook)
		task.settle(req, err)
		t.inflight.done()
	}
}

// runHook logs a panicking hook instead of letting it strand the request.
func (t *StateTree) runHook(name string, id RequestID, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			t.Logger.Error("Request hook panicked", fmt.Errorf("panic: %v", r),
				logging.RequestFields(uint64(id), "", "hook", name))
		}
	}()
	fn()
}
