// Package cloudevents provides the CloudEvents v1.0 envelope used by the
// state tree change feed.
package cloudevents

import (
	"fmt"
	"time"

	idspkg "github.com/drblury/statetree/internal/runtime/ids"
	"github.com/drblury/statetree/internal/runtime/jsoncodec"
)

// SpecVersion is the CloudEvents specification version implemented.
const SpecVersion = "1.0"

// ContentTypeJSON is the data content type of every change feed event.
const ContentTypeJSON = "application/json"

// Change feed event types.
const (
	TypeRequestPending   = "statetree.request.pending"
	TypeRequestCompleted = "statetree.request.completed"
	TypeRequestFailed    = "statetree.request.failed"
	TypeRequestUnhandled = "statetree.request.unhandled"
)

// Event is a CloudEvents v1.0 structured-mode event.
// See https://github.com/cloudevents/spec/blob/v1.0/spec.md for details.
type Event struct {
	// SpecVersion MUST be "1.0".
	SpecVersion string `json:"specversion"`

	// Type is one of the statetree.request.* types.
	Type string `json:"type"`

	// Source identifies the producing tree.
	Source string `json:"source"`

	// ID is a ULID unless set explicitly.
	ID string `json:"id"`

	Time time.Time `json:"time"`

	DataContentType string `json:"datacontenttype,omitempty"`

	// Subject carries the request id.
	Subject string `json:"subject,omitempty"`

	Data any `json:"data,omitempty"`
}

// New creates a new event with required fields populated.
// ID is auto-generated using ULID, Time is set to current time.
func New(eventType, source string, data any) Event {
	return Event{
		SpecVersion:     SpecVersion,
		Type:            eventType,
		Source:          source,
		ID:              idspkg.CreateULID(),
		Time:            Now(),
		DataContentType: ContentTypeJSON,
		Data:            data,
	}
}

// WithSubject sets the subject field and returns the event.
func (e Event) WithSubject(subject string) Event {
	e.Subject = subject
	return e
}

// WithTime overrides the event time and returns the event.
func (e Event) WithTime(t time.Time) Event {
	if !t.IsZero() {
		e.Time = t.UTC()
	}
	return e
}

// Validate checks that the event has all required CloudEvents attributes.
func (e Event) Validate() error {
	if e.SpecVersion == "" {
		return fmt.Errorf("specversion is required")
	}
	if e.SpecVersion != SpecVersion {
		return fmt.Errorf("specversion must be %q, got %q", SpecVersion, e.SpecVersion)
	}
	if e.Type == "" {
		return fmt.Errorf("type is required")
	}
	if e.Source == "" {
		return fmt.Errorf("source is required")
	}
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}
	return nil
}

// Encode validates e and renders it in structured JSON mode.
func Encode(e Event) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("invalid event: %w", err)
	}
	return jsoncodec.Marshal(e)
}

// Decode parses a structured JSON event. Data is decoded generically.
func Decode(payload []byte) (Event, error) {
	var e Event
	if err := jsoncodec.Unmarshal(payload, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, fmt.Errorf("invalid event: %w", err)
	}
	return e, nil
}

// DecodeData re-decodes e.Data into out.
func (e Event) DecodeData(out any) error {
	raw, err := jsoncodec.Marshal(e.Data)
	if err != nil {
		return err
	}
	return jsoncodec.Unmarshal(raw, out)
}

// Now returns the current UTC time.
func Now() time.Time {
	return time.Now().UTC()
}
