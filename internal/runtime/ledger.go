package runtime

import (
	"time"

	"github.com/drblury/statetree/internal/runtime/ids"
)

// RequestLedger allocates request ids and builds the request records for each
// stage of the lifecycle. It owns its counter, so two trees never share ids.
type RequestLedger struct {
	counter ids.Counter
}

// Open allocates the next id and returns the pending request.
func (l *RequestLedger) Open(now time.Time) Request {
	return Request{ID: RequestID(l.counter.Next()), Timestamp: now}
}

// Succeed completes req with the ids produced by the operation.
func (l *RequestLedger) Succeed(req Request, result map[string][]string, now time.Time) Request {
	if result == nil {
		result = map[string][]string{}
	}
	req.Completed = true
	req.CompletedAt = now
	req.Result = result
	req.Error = nil
	return req
}

// Fail completes req with a domain error and an empty result.
func (l *RequestLedger) Fail(req Request, err *RequestError, now time.Time) Request {
	req.Completed = true
	req.CompletedAt = now
	req.Result = map[string][]string{}
	req.Error = err
	return req
}

// Last reports the most recently allocated id.
func (l *RequestLedger) Last() RequestID {
	return RequestID(l.counter.Last())
}
