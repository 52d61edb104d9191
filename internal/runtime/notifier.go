package runtime

import (
	"fmt"
	"sync"

	"github.com/drblury/statetree/internal/runtime/logging"
)

// ChangeObserver receives every new snapshot.
type ChangeObserver func(*Snapshot)

// UnhandledErrorObserver receives errors the tree could not classify, along
// with the id of the request that stays pending.
type UnhandledErrorObserver func(err error, id RequestID)

type emission struct {
	snapshot  *Snapshot
	delta     Delta
	err       error
	requestID RequestID
	after     func()
}

func (e emission) unhandled() bool { return e.err != nil }

type changeSubscription struct {
	id uint64
	fn ChangeObserver
}

type errorSubscription struct {
	id uint64
	fn UnhandledErrorObserver
}

// notifier serializes delivery. Emissions are queued in commit order and
// drained by a single goroutine at a time; emissions queued while a drain is
// running (including from inside an observer) are picked up by that drain.
type notifier struct {
	logger  logging.ServiceLogger
	metrics *RequestMetrics
	tap     func(emission)

	mu       sync.Mutex
	nextID   uint64
	changes  []changeSubscription
	errs     []errorSubscription
	queue    []emission
	draining bool
}

func newNotifier(logger logging.ServiceLogger, metrics *RequestMetrics) *notifier {
	return &notifier{logger: logger, metrics: metrics}
}

func (n *notifier) onChange(fn ChangeObserver) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	id := n.nextID
	n.changes = append(n.changes, changeSubscription{id: id, fn: fn})
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		for i, sub := range n.changes {
			if sub.id == id {
				n.changes = append(n.changes[:i:i], n.changes[i+1:]...)
				return
			}
		}
	}
}

func (n *notifier) onUnhandledError(fn UnhandledErrorObserver) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	id := n.nextID
	n.errs = append(n.errs, errorSubscription{id: id, fn: fn})
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		for i, sub := range n.errs {
			if sub.id == id {
				n.errs = append(n.errs[:i:i], n.errs[i+1:]...)
				return
			}
		}
	}
}

func (n *notifier) enqueue(e emission) {
	n.mu.Lock()
	n.queue = append(n.queue, e)
	n.mu.Unlock()
}

func (n *notifier) drain() {
	n.mu.Lock()
	if n.draining {
		n.mu.Unlock()
		return
	}
	n.draining = true
	for len(n.queue) > 0 {
		e := n.queue[0]
		n.queue[0] = emission{}
		n.queue = n.queue[1:]
		changes := n.changes
		errs := n.errs
		n.mu.Unlock()

		n.deliver(e, changes, errs)

		n.mu.Lock()
	}
	n.queue = nil
	n.draining = false
	n.mu.Unlock()
}

func (n *notifier) deliver(e emission, changes []changeSubscription, errs []errorSubscription) {
	if e.unhandled() {
		n.metrics.RecordUnhandledError()
		for _, sub := range errs {
			n.safely("unhandled_error", e.requestID, func() { sub.fn(e.err, e.requestID) })
		}
	} else {
		n.metrics.RecordEmission()
		for _, sub := range changes {
			n.safely("change", e.requestID, func() { sub.fn(e.snapshot) })
		}
	}
	if n.tap != nil {
		n.safely("feed", e.requestID, func() { n.tap(e) })
	}
	if e.after != nil {
		e.after()
	}
}

func (n *notifier) safely(kind string, id RequestID, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Observer panicked", fmt.Errorf("panic: %v", r), logging.RequestFields(uint64(id), "", "observer", kind))
		}
	}()
	fn()
}
