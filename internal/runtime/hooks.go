package runtime

import (
	"context"
	"time"

	"github.com/drblury/statetree/internal/runtime/jsonapi"
	"github.com/drblury/statetree/internal/runtime/logging"
)

// Request outcomes reported to hooks and metrics.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeUnhandled = "unhandled"
)

// RequestContext provides information about a request to hooks.
type RequestContext struct {
	// RequestID is the id allocated for the request.
	RequestID RequestID
	// Operation is the op or query expression name, e.g. "addRecord".
	Operation string
	// Kind is either "update" or "query".
	Kind string
	// Target is the record the request addresses. ID is empty for findRecords.
	Target jsonapi.Identity
	// StartedAt is when the request was dispatched.
	StartedAt time.Time
	// Duration is only set in OnRequestDone and OnRequestError.
	Duration time.Duration
	// Outcome is only set in OnRequestDone and OnRequestError.
	Outcome string
	// Context is the caller's context.
	Context context.Context
}

// RequestHooks defines callbacks for request lifecycle events.
// All hooks are optional - nil hooks are simply not called. A panicking hook
// is logged and the request carries on.
type RequestHooks struct {
	// OnRequestStart is called after the pending request has been committed
	// and before the store is called.
	OnRequestStart func(ctx RequestContext)

	// OnRequestDone is called when the request completed, including domain
	// failures. Outcome tells them apart. It runs after the completed request
	// is in the snapshot and observers have seen it, and before the task
	// settles.
	OnRequestDone func(ctx RequestContext)

	// OnRequestError is called when the store returned an error the tree could
	// not classify. The request stays pending. Like OnRequestDone it runs
	// after the unhandled-error observers and before the task settles.
	OnRequestError func(ctx RequestContext, err error)
}

// Merge combines two RequestHooks, creating a new RequestHooks that calls both.
// The hooks from 'other' are called after the hooks from 'h'.
func (h RequestHooks) Merge(other RequestHooks) RequestHooks {
	return RequestHooks{
		OnRequestStart: chainHooks(h.OnRequestStart, other.OnRequestStart),
		OnRequestDone:  chainHooks(h.OnRequestDone, other.OnRequestDone),
		OnRequestError: chainErrorHooks(h.OnRequestError, other.OnRequestError),
	}
}

func (h RequestHooks) start(ctx RequestContext) {
	if h.OnRequestStart != nil {
		h.OnRequestStart(ctx)
	}
}

func (h RequestHooks) done(ctx RequestContext) {
	if h.OnRequestDone != nil {
		h.OnRequestDone(ctx)
	}
}

func (h RequestHooks) fail(ctx RequestContext, err error) {
	if h.OnRequestError != nil {
		h.OnRequestError(ctx, err)
	}
}

func chainHooks[T any](a, b func(T)) func(T) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(v T) {
		a(v)
		b(v)
	}
}

func chainErrorHooks(a, b func(RequestContext, error)) func(RequestContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx RequestContext, err error) {
		a(ctx, err)
		b(ctx, err)
	}
}

// LoggingHooks returns pre-built hooks that log request lifecycle events.
func LoggingHooks(logger logging.ServiceLogger) RequestHooks {
	return RequestHooks{
		OnRequestStart: func(ctx RequestContext) {
			logger.Debug("Request dispatched", logging.RequestFields(uint64(ctx.RequestID), ctx.Operation,
				"type", ctx.Target.Type,
				"id", ctx.Target.ID,
			))
		},
		OnRequestDone: func(ctx RequestContext) {
			fields := logging.RequestFields(uint64(ctx.RequestID), ctx.Operation,
				"outcome", ctx.Outcome,
				"duration_ms", ctx.Duration.Milliseconds(),
			)
			if ctx.Outcome == OutcomeFailed {
				logger.Info("Request failed", fields)
				return
			}
			logger.Debug("Request completed", fields)
		},
		OnRequestError: func(ctx RequestContext, err error) {
			logger.Error("Request error unhandled", err, logging.RequestFields(uint64(ctx.RequestID), ctx.Operation,
				"type", ctx.Target.Type,
				"id", ctx.Target.ID,
				"duration_ms", ctx.Duration.Milliseconds(),
			))
		},
	}
}

// MetricsHooks returns pre-built hooks that record request metrics.
func MetricsHooks(m *RequestMetrics) RequestHooks {
	if m == nil {
		return RequestHooks{}
	}
	return RequestHooks{
		OnRequestStart: func(ctx RequestContext) {
			m.RecordStart(ctx.Operation)
		},
		OnRequestDone: func(ctx RequestContext) {
			m.RecordDone(ctx.Operation, ctx.Outcome, ctx.Duration)
		},
		OnRequestError: func(ctx RequestContext, _ error) {
			m.RecordDone(ctx.Operation, OutcomeUnhandled, ctx.Duration)
		},
	}
}

// AlertingHooks returns pre-built hooks that trigger alerts on unhandled errors.
func AlertingHooks(alertFunc func(ctx RequestContext, err error)) RequestHooks {
	return RequestHooks{
		OnRequestError: alertFunc,
	}
}
