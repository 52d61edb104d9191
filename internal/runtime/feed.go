package runtime

import (
	"fmt"
	"strconv"

	"github.com/ThreeDotsLabs/watermill/message"

	ce "github.com/drblury/statetree/internal/runtime/cloudevents"
	configpkg "github.com/drblury/statetree/internal/runtime/config"
	errspkg "github.com/drblury/statetree/internal/runtime/errors"
	loggingpkg "github.com/drblury/statetree/internal/runtime/logging"
	metadatapkg "github.com/drblury/statetree/internal/runtime/metadata"
)

// ChangeEventData is the data attribute of every change feed event.
type ChangeEventData struct {
	// Request is the request record as committed. For unhandled events it is
	// the still pending request.
	Request Request `json:"request"`
	// EntityCounts holds the number of records per type touched by the change.
	EntityCounts map[string]int `json:"entity_counts,omitempty"`
	// Error is only set on statetree.request.unhandled events.
	Error string `json:"error,omitempty"`
}

// ChangeFeed publishes every committed change to a Watermill publisher.
type ChangeFeed struct {
	publisher message.Publisher
	topic     string
	source    string
	logger    loggingpkg.ServiceLogger
}

// NewChangeFeed creates a feed publishing to topic. An empty source falls back
// to config.DefaultFeedSource.
func NewChangeFeed(publisher message.Publisher, topic, source string, logger loggingpkg.ServiceLogger) (*ChangeFeed, error) {
	if publisher == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	if topic == "" {
		return nil, errspkg.ErrTopicRequired
	}
	if source == "" {
		source = configpkg.DefaultFeedSource
	}
	if logger == nil {
		logger = loggingpkg.NewNopServiceLogger()
	}
	return &ChangeFeed{
		publisher: publisher,
		topic:     topic,
		source:    source,
		logger:    loggingpkg.ForComponent(logger, "change_feed").With(loggingpkg.LogFields{"topic": topic}),
	}, nil
}

// Topic returns the topic events are published to.
func (f *ChangeFeed) Topic() string { return f.topic }

func (f *ChangeFeed) observe(e emission) {
	evt := f.event(e)
	if err := f.publish(evt); err != nil {
		f.logger.Error("Failed to publish change event", err, loggingpkg.RequestFields(uint64(e.requestID), "", "event_type", evt.Type))
	}
}

func (f *ChangeFeed) event(e emission) ce.Event {
	var req Request
	if e.snapshot != nil {
		req = e.snapshot.Requests[e.requestID]
	}
	if r, ok := e.delta.Requests[e.requestID]; ok {
		req = r
	}

	data := ChangeEventData{Request: req}
	eventType := ce.TypeRequestPending
	switch {
	case e.unhandled():
		eventType = ce.TypeRequestUnhandled
		data.Error = e.err.Error()
	case req.Failed():
		eventType = ce.TypeRequestFailed
	case req.Succeeded():
		eventType = ce.TypeRequestCompleted
	}
	if len(e.delta.Entities) > 0 {
		data.EntityCounts = make(map[string]int, len(e.delta.Entities))
		for typ, byID := range e.delta.Entities {
			data.EntityCounts[typ] = len(byID)
		}
	}

	stamp := req.Timestamp
	if req.Completed {
		stamp = req.CompletedAt
	}
	return ce.New(eventType, f.source, data).
		WithSubject(strconv.FormatUint(uint64(e.requestID), 10)).
		WithTime(stamp)
}

func (f *ChangeFeed) publish(evt ce.Event) error {
	payload, err := ce.Encode(evt)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}

	msg := message.NewMessage(evt.ID, payload)
	msg.Metadata = metadatapkg.New(
		metadatapkg.KeyEventID, evt.ID,
		metadatapkg.KeyEventType, evt.Type,
		metadatapkg.KeyEventSource, evt.Source,
		metadatapkg.KeyRequestID, evt.Subject,
		metadatapkg.KeyContentType, ce.ContentTypeJSON,
	).ToWatermill()

	return f.publisher.Publish(f.topic, msg)
}
