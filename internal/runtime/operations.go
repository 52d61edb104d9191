package runtime

import (
	"context"
	"fmt"

	errspkg "github.com/drblury/statetree/internal/runtime/errors"
	"github.com/drblury/statetree/internal/runtime/jsonapi"
	"github.com/drblury/statetree/internal/runtime/operation"
	"github.com/drblury/statetree/internal/runtime/schema"
)

// RecordsQuery refines FindRecords. Filters are conjunctive, sorts apply in
// order and Page selects an offset/limit window of the sorted result.
type RecordsQuery struct {
	Filter []operation.Filter
	Sort   []operation.Sort
	Page   *operation.Page
}

// InvalidRelationshipError reports a relationship operation whose name or
// cardinality does not match the schema.
type InvalidRelationshipError struct {
	Relationship string
	Model        string
	Kind         schema.Kind
}

func (e *InvalidRelationshipError) Error() string {
	return fmt.Sprintf("statetree: invalid relationship %s on model %s with type %s", e.Relationship, e.Model, e.Kind)
}

func (e *InvalidRelationshipError) Unwrap() error {
	return errspkg.ErrInvalidRelationship
}

func (t *StateTree) relationship(typ, name string, kind schema.Kind) (schema.Relationship, error) {
	rel, ok := t.schema.ModelHasRelationship(typ, name)
	if !ok || rel.Kind != kind {
		return schema.Relationship{}, &InvalidRelationshipError{Relationship: name, Model: typ, Kind: kind}
	}
	return rel, nil
}

func (t *StateTree) update(ctx context.Context, op operation.Operation) Handle {
	return t.dispatch(ctx, call{
		operation: string(op.Op),
		kind:      kindUpdate,
		target:    op.Identity(),
		run: func(ctx context.Context) (jsonapi.Document, error) {
			return t.store.Update(ctx, op)
		},
	})
}

func (t *StateTree) query(ctx context.Context, q operation.Query) Handle {
	target := q.Target
	if q.Expr == operation.FindRecordsExpr {
		target = jsonapi.Identity{Type: q.Type}
	}
	return t.dispatch(ctx, call{
		operation: string(q.Expr),
		kind:      kindQuery,
		target:    target,
		run: func(ctx context.Context) (jsonapi.Document, error) {
			return t.store.Query(ctx, q)
		},
	})
}

// AddRecord serializes record as typ and adds it to the store. A missing id
// is generated by the schema.
func (t *StateTree) AddRecord(ctx context.Context, typ string, record map[string]any) (Handle, error) {
	res, err := t.serializer.Resource(typ, record)
	if err != nil {
		return Handle{}, err
	}
	return t.update(ctx, operation.Operation{Op: operation.AddRecord, Record: res}), nil
}

// ReplaceRecord serializes record as typ and merges it into the stored
// record: fields present in record overwrite, the others are kept.
func (t *StateTree) ReplaceRecord(ctx context.Context, typ string, record map[string]any) (Handle, error) {
	res, err := t.serializer.Resource(typ, record)
	if err != nil {
		return Handle{}, err
	}
	return t.update(ctx, operation.Operation{Op: operation.ReplaceRecord, Record: res}), nil
}

// RemoveRecord removes the record typ/id.
func (t *StateTree) RemoveRecord(ctx context.Context, typ, id string) Handle {
	return t.update(ctx, operation.Operation{
		Op:     operation.RemoveRecord,
		Target: jsonapi.Identity{Type: typ, ID: id},
	})
}

// ReplaceKey sets the remote key keyName of typ/id to keyValue.
func (t *StateTree) ReplaceKey(ctx context.Context, typ, id, keyName, keyValue string) Handle {
	return t.update(ctx, operation.Operation{
		Op:     operation.ReplaceKey,
		Target: jsonapi.Identity{Type: typ, ID: id},
		Name:   keyName,
		Value:  keyValue,
	})
}

// ReplaceAttribute sets one attribute of typ/id.
func (t *StateTree) ReplaceAttribute(ctx context.Context, typ, id, attribute string, value any) Handle {
	return t.update(ctx, operation.Operation{
		Op:     operation.ReplaceAttribute,
		Target: jsonapi.Identity{Type: typ, ID: id},
		Name:   attribute,
		Value:  value,
	})
}

// AddToRelatedRecords adds relatedID to a hasMany relationship.
func (t *StateTree) AddToRelatedRecords(ctx context.Context, typ, id, relationship, relatedID string) (Handle, error) {
	rel, err := t.relationship(typ, relationship, schema.HasMany)
	if err != nil {
		return Handle{}, err
	}
	return t.update(ctx, operation.Operation{
		Op:           operation.AddToRelatedRecords,
		Target:       jsonapi.Identity{Type: typ, ID: id},
		Relationship: relationship,
		Related:      &jsonapi.Identity{Type: rel.Model, ID: relatedID},
	}), nil
}

// RemoveFromRelatedRecords removes relatedID from a hasMany relationship.
func (t *StateTree) RemoveFromRelatedRecords(ctx context.Context, typ, id, relationship, relatedID string) (Handle, error) {
	rel, err := t.relationship(typ, relationship, schema.HasMany)
	if err != nil {
		return Handle{}, err
	}
	return t.update(ctx, operation.Operation{
		Op:           operation.RemoveFromRelatedRecords,
		Target:       jsonapi.Identity{Type: typ, ID: id},
		Relationship: relationship,
		Related:      &jsonapi.Identity{Type: rel.Model, ID: relatedID},
	}), nil
}

// ReplaceRelatedRecords replaces the members of a hasMany relationship.
func (t *StateTree) ReplaceRelatedRecords(ctx context.Context, typ, id, relationship string, relatedIDs []string) (Handle, error) {
	rel, err := t.relationship(typ, relationship, schema.HasMany)
	if err != nil {
		return Handle{}, err
	}
	set := make([]jsonapi.Identity, 0, len(relatedIDs))
	for _, relatedID := range relatedIDs {
		set = append(set, jsonapi.Identity{Type: rel.Model, ID: relatedID})
	}
	return t.update(ctx, operation.Operation{
		Op:           operation.ReplaceRelatedRecords,
		Target:       jsonapi.Identity{Type: typ, ID: id},
		Relationship: relationship,
		RelatedSet:   set,
	}), nil
}

// ReplaceRelatedRecord sets a hasOne relationship. An empty relatedID clears
// the link.
func (t *StateTree) ReplaceRelatedRecord(ctx context.Context, typ, id, relationship, relatedID string) (Handle, error) {
	rel, err := t.relationship(typ, relationship, schema.HasOne)
	if err != nil {
		return Handle{}, err
	}
	op := operation.Operation{
		Op:           operation.ReplaceRelatedRecord,
		Target:       jsonapi.Identity{Type: typ, ID: id},
		Relationship: relationship,
	}
	if relatedID != "" {
		op.Related = &jsonapi.Identity{Type: rel.Model, ID: relatedID}
	}
	return t.update(ctx, op), nil
}

// FindRecord queries one record by identity.
func (t *StateTree) FindRecord(ctx context.Context, typ, id string) Handle {
	return t.query(ctx, operation.FindRecord(typ, id).MustQuery())
}

// FindRecords queries every record of typ, refined by q. Invalid refinements
// are reported before a request is opened.
func (t *StateTree) FindRecords(ctx context.Context, typ string, q RecordsQuery) (Handle, error) {
	term := operation.FindRecords(typ).Filter(q.Filter...).Sort(q.Sort...)
	if q.Page != nil {
		term = term.Page(*q.Page)
	}
	built, err := term.Query()
	if err != nil {
		return Handle{}, err
	}
	return t.query(ctx, built), nil
}

// FindRelatedRecord queries the target of a hasOne relationship.
func (t *StateTree) FindRelatedRecord(ctx context.Context, typ, id, relationship string) (Handle, error) {
	if _, err := t.relationship(typ, relationship, schema.HasOne); err != nil {
		return Handle{}, err
	}
	return t.query(ctx, operation.FindRelatedRecord(typ, id, relationship).MustQuery()), nil
}

// FindRelatedRecords queries the members of a hasMany relationship.
func (t *StateTree) FindRelatedRecords(ctx context.Context, typ, id, relationship string) (Handle, error) {
	if _, err := t.relationship(typ, relationship, schema.HasMany); err != nil {
		return Handle{}, err
	}
	return t.query(ctx, operation.FindRelatedRecords(typ, id, relationship).MustQuery()), nil
}
