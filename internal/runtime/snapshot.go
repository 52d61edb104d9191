package runtime

import (
	"time"

	"github.com/drblury/statetree/internal/runtime/jsonapi"
	"github.com/drblury/statetree/internal/runtime/operation"
)

// RequestID identifies a request for the lifetime of a StateTree. Ids start
// at 1 and strictly increase.
type RequestID uint64

// RequestError is the domain failure stored on a failed request.
type RequestError struct {
	Message      string `json:"message"`
	Description  string `json:"description"`
	Type         string `json:"type,omitempty"`
	ID           string `json:"id,omitempty"`
	Relationship string `json:"relationship,omitempty"`
}

func newRequestError(err *operation.RecordError) *RequestError {
	return &RequestError{
		Message:      err.Message,
		Description:  err.Description,
		Type:         err.Type,
		ID:           err.ID,
		Relationship: err.Relationship,
	}
}

// Request tracks one operation. A request is created pending and completes
// exactly once, carrying either Result or Error.
type Request struct {
	ID          RequestID           `json:"id"`
	Completed   bool                `json:"completed"`
	Timestamp   time.Time           `json:"timestamp"`
	CompletedAt time.Time           `json:"completedAt"`
	Result      map[string][]string `json:"result"`
	Error       *RequestError       `json:"error"`
}

func (r Request) Pending() bool   { return !r.Completed }
func (r Request) Succeeded() bool { return r.Completed && r.Error == nil }
func (r Request) Failed() bool    { return r.Completed && r.Error != nil }

// Snapshot is an immutable view of the state tree. Every change produces a new
// Snapshot; callers must treat everything reachable from it as read-only.
type Snapshot struct {
	Entities jsonapi.Entities
	Requests map[RequestID]Request
}

func emptySnapshot() *Snapshot {
	return &Snapshot{Entities: jsonapi.Entities{}, Requests: map[RequestID]Request{}}
}

// Delta is the input of one merge.
type Delta struct {
	Entities jsonapi.Entities
	Requests map[RequestID]Request
}
