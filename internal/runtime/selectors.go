package runtime

import "github.com/drblury/statetree/internal/runtime/jsonapi"

// SelectRecord returns the denormalized record: attributes at the top level,
// relationships resolved from the snapshot, and "id". Unknown related
// records resolve to {"id", "type"} stubs.
func SelectRecord(snapshot *Snapshot, typ, id string) (map[string]any, bool) {
	if snapshot == nil {
		return nil, false
	}
	return jsonapi.Denormalize(snapshot.Entities, typ, id)
}

// SelectRequest returns the request record for id.
func SelectRequest(snapshot *Snapshot, id RequestID) (Request, bool) {
	if snapshot == nil {
		return Request{}, false
	}
	req, ok := snapshot.Requests[id]
	return req, ok
}
