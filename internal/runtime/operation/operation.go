// Package operation describes the mutations and queries a state tree sends to
// its record store, and the contract that store fulfils.
package operation

import (
	"context"

	"github.com/drblury/statetree/internal/runtime/jsonapi"
)

// Op names a mutation.
type Op string

const (
	AddRecord                Op = "addRecord"
	ReplaceRecord            Op = "replaceRecord"
	RemoveRecord             Op = "removeRecord"
	ReplaceKey               Op = "replaceKey"
	ReplaceAttribute         Op = "replaceAttribute"
	AddToRelatedRecords      Op = "addToRelatedRecords"
	RemoveFromRelatedRecords Op = "removeFromRelatedRecords"
	ReplaceRelatedRecords    Op = "replaceRelatedRecords"
	ReplaceRelatedRecord     Op = "replaceRelatedRecord"
)

// Operation is a mutation descriptor. Which fields are set depends on Op:
//
//	addRecord, replaceRecord        Record
//	removeRecord                    Target
//	replaceKey, replaceAttribute    Target, Name, Value
//	add/removeFromRelatedRecords    Target, Relationship, Related
//	replaceRelatedRecords           Target, Relationship, RelatedSet
//	replaceRelatedRecord            Target, Relationship, Related (nil clears)
type Operation struct {
	Op           Op
	Record       jsonapi.Resource
	Target       jsonapi.Identity
	Relationship string
	Related      *jsonapi.Identity
	RelatedSet   []jsonapi.Identity
	Name         string
	Value        any
}

// Identity returns the record the operation is about.
func (o Operation) Identity() jsonapi.Identity {
	if o.Op == AddRecord || o.Op == ReplaceRecord {
		return o.Record.Identity()
	}
	return o.Target
}

// Args renders the positional arguments of the operation, in the order a
// record store method would receive them.
func (o Operation) Args() []any {
	switch o.Op {
	case AddRecord, ReplaceRecord:
		return []any{o.Record}
	case RemoveRecord:
		return []any{o.Target}
	case ReplaceKey, ReplaceAttribute:
		return []any{o.Target, o.Name, o.Value}
	case AddToRelatedRecords, RemoveFromRelatedRecords, ReplaceRelatedRecord:
		if o.Related == nil {
			return []any{o.Target, o.Relationship, nil}
		}
		return []any{o.Target, o.Relationship, *o.Related}
	case ReplaceRelatedRecords:
		return []any{o.Target, o.Relationship, o.RelatedSet}
	default:
		return nil
	}
}

// Store is the external record store. A returned *RecordError is a domain
// failure; any other error is treated as unexpected.
type Store interface {
	Update(ctx context.Context, op Operation) (jsonapi.Document, error)
	Query(ctx context.Context, q Query) (jsonapi.Document, error)
}
