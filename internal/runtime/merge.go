package runtime

import "github.com/drblury/statetree/internal/runtime/jsonapi"

// Merge folds delta into prev and returns a new snapshot; prev is never
// modified. Type maps touched by the delta and the request map are copied,
// everything else is shared with prev.
//
// Entities merge field by field, so keys, attributes and relationships
// missing from the delta survive. Requests merge per id; a completed request
// is never overwritten and the original timestamp is kept.
func Merge(prev *Snapshot, delta Delta) *Snapshot {
	if prev == nil {
		prev = emptySnapshot()
	}

	next := &Snapshot{
		Entities: make(jsonapi.Entities, len(prev.Entities)+len(delta.Entities)),
		Requests: prev.Requests,
	}
	for typ, byID := range prev.Entities {
		next.Entities[typ] = byID
	}
	for typ, incoming := range delta.Entities {
		if len(incoming) == 0 {
			continue
		}
		current := prev.Entities[typ]
		merged := make(map[string]jsonapi.Resource, len(current)+len(incoming))
		for id, r := range current {
			merged[id] = r
		}
		for id, r := range incoming {
			if old, ok := current[id]; ok {
				merged[id] = jsonapi.MergeResource(old, r)
				continue
			}
			merged[id] = r.Clone()
		}
		next.Entities[typ] = merged
	}

	if len(delta.Requests) > 0 {
		requests := make(map[RequestID]Request, len(prev.Requests)+len(delta.Requests))
		for id, r := range prev.Requests {
			requests[id] = r
		}
		for id, r := range delta.Requests {
			if old, ok := requests[id]; ok {
				requests[id] = mergeRequest(old, r)
				continue
			}
			requests[id] = r
		}
		next.Requests = requests
	}
	if next.Requests == nil {
		next.Requests = map[RequestID]Request{}
	}

	return next
}

func mergeRequest(prev, next Request) Request {
	if prev.Completed {
		return prev
	}
	if !prev.Timestamp.IsZero() {
		next.Timestamp = prev.Timestamp
	}
	return next
}
