// Package metadata holds the header map attached to change-feed messages.
package metadata

import "github.com/ThreeDotsLabs/watermill/message"

// Header keys set on every change-feed message. The ce_ prefix follows the
// CloudEvents binary-mode convention so brokers can route without decoding.
const (
	KeyEventID     = "ce_id"
	KeyEventType   = "ce_type"
	KeyEventSource = "ce_source"
	KeyRequestID   = "statetree_request_id"
	KeyContentType = "content-type"
)

// Metadata represents the headers carried alongside a change event.
type Metadata map[string]string

func (m Metadata) grow(extra int) Metadata {
	out := make(Metadata, len(m)+extra)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy; a nil receiver yields an empty map.
func (m Metadata) Clone() Metadata {
	return m.grow(0)
}

// With returns a copy containing key=value.
func (m Metadata) With(key, value string) Metadata {
	out := m.grow(1)
	out[key] = value
	return out
}

// WithAll returns a copy overlaid with entries.
func (m Metadata) WithAll(entries Metadata) Metadata {
	out := m.grow(len(entries))
	for k, v := range entries {
		out[k] = v
	}
	return out
}

// New builds Metadata from alternating key/value pairs. A trailing key
// without a value is ignored.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}

// ToWatermill copies the headers into a Watermill message metadata map.
func (m Metadata) ToWatermill() message.Metadata {
	wm := make(message.Metadata, len(m))
	for k, v := range m {
		wm[k] = v
	}
	return wm
}

// FromWatermill copies Watermill message metadata.
func FromWatermill(md message.Metadata) Metadata {
	out := make(Metadata, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
