// Package serializer turns plain record maps into JSON:API resources. Augment
// annotates a record with its type and relationship names; Serialize then
// splits it into attributes, linkage and included related records.
package serializer

import (
	"fmt"
	"strconv"

	errspkg "github.com/drblury/statetree/internal/runtime/errors"
	"github.com/drblury/statetree/internal/runtime/jsonapi"
	"github.com/drblury/statetree/internal/runtime/schema"
)

// Reserved record fields.
const (
	FieldID                = "id"
	FieldType              = "type"
	FieldKeys              = "keys"
	FieldRelationshipNames = "relationshipNames"
)

// Augment returns a new map holding typ and the relationship names of typ,
// overlaid by the fields of record. Relationship fields that hold related
// records are augmented recursively with the related type. record is not
// modified.
func Augment(adapter schema.Adapter, typ string, record map[string]any) map[string]any {
	names := adapter.RelationshipNames(typ)
	out := make(map[string]any, len(record)+2)
	out[FieldType] = typ
	out[FieldRelationshipNames] = append([]string(nil), names...)
	for k, v := range record {
		out[k] = v
	}
	for _, name := range names {
		value, ok := record[name]
		if !ok || isBlank(value) {
			continue
		}
		rel, _ := adapter.ModelHasRelationship(typ, name)
		out[name] = augmentValue(adapter, rel.Model, value)
	}
	return out
}

func augmentValue(adapter schema.Adapter, typ string, value any) any {
	switch v := value.(type) {
	case map[string]any:
		return Augment(adapter, typ, v)
	case []map[string]any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Augment(adapter, typ, item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = augmentValue(adapter, typ, item)
		}
		return out
	default:
		return value
	}
}

func isBlank(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	default:
		return false
	}
}

// Serializer converts records of a schema into JSON:API documents.
type Serializer struct {
	schema schema.Adapter
}

func New(adapter schema.Adapter) *Serializer {
	return &Serializer{schema: adapter}
}

// Serialize augments record and converts it into a single-resource document.
// Related records given with more than their identity end up in Included.
func (s *Serializer) Serialize(typ string, record map[string]any) (jsonapi.Document, error) {
	if !s.schema.HasModel(typ) {
		return jsonapi.Document{}, fmt.Errorf("%w: %q", errspkg.ErrUnknownType, typ)
	}
	var included []jsonapi.Resource
	r, err := s.resource(Augment(s.schema, typ, record), &included)
	if err != nil {
		return jsonapi.Document{}, err
	}
	return jsonapi.Single(r, included...), nil
}

// Resource is Serialize without the document envelope; included related
// records are dropped.
func (s *Serializer) Resource(typ string, record map[string]any) (jsonapi.Resource, error) {
	doc, err := s.Serialize(typ, record)
	if err != nil {
		return jsonapi.Resource{}, err
	}
	return doc.Data[0], nil
}

func (s *Serializer) resource(augmented map[string]any, included *[]jsonapi.Resource) (jsonapi.Resource, error) {
	typ, _ := augmented[FieldType].(string)
	if !s.schema.HasModel(typ) {
		return jsonapi.Resource{}, fmt.Errorf("%w: %q", errspkg.ErrUnknownType, typ)
	}
	r := jsonapi.Resource{Type: typ, ID: formatID(augmented[FieldID])}
	if r.ID == "" {
		r.ID = s.schema.GenerateID(typ)
	}

	relNames := map[string]bool{}
	if names, ok := augmented[FieldRelationshipNames].([]string); ok {
		for _, name := range names {
			relNames[name] = true
		}
	}

	for field, value := range augmented {
		switch {
		case field == FieldID || field == FieldType || field == FieldRelationshipNames:
		case field == FieldKeys:
			r.Keys = keysOf(value)
		case relNames[field]:
			rel, err := s.linkage(typ, field, value, included)
			if err != nil {
				return jsonapi.Resource{}, err
			}
			if r.Relationships == nil {
				r.Relationships = map[string]jsonapi.Relationship{}
			}
			r.Relationships[field] = rel
		default:
			if r.Attributes == nil {
				r.Attributes = map[string]any{}
			}
			r.Attributes[field] = value
		}
	}
	return r, nil
}

func (s *Serializer) linkage(typ, name string, value any, included *[]jsonapi.Resource) (jsonapi.Relationship, error) {
	decl, _ := s.schema.ModelHasRelationship(typ, name)
	switch v := value.(type) {
	case nil:
		if decl.Kind == schema.HasMany {
			return jsonapi.ToMany(decl.Model), nil
		}
		return jsonapi.Relationship{}, nil
	case []any:
		rel := jsonapi.Relationship{Many: true, Members: make([]jsonapi.Identity, 0, len(v))}
		for _, item := range v {
			ident, err := s.member(decl.Model, item, included)
			if err != nil {
				return jsonapi.Relationship{}, err
			}
			rel.Members = append(rel.Members, ident)
		}
		return rel, nil
	case []string:
		return jsonapi.ToMany(decl.Model, v...), nil
	default:
		ident, err := s.member(decl.Model, v, included)
		if err != nil {
			return jsonapi.Relationship{}, err
		}
		return jsonapi.Relationship{One: &ident}, nil
	}
}

func (s *Serializer) member(typ string, value any, included *[]jsonapi.Resource) (jsonapi.Identity, error) {
	record, ok := value.(map[string]any)
	if !ok {
		id := formatID(value)
		if id == "" {
			return jsonapi.Identity{}, fmt.Errorf("serialize %s linkage: unsupported value %T", typ, value)
		}
		return jsonapi.Identity{Type: typ, ID: id}, nil
	}
	if _, ok := record[FieldType]; !ok {
		record = Augment(s.schema, typ, record)
	}
	r, err := s.resource(record, included)
	if err != nil {
		return jsonapi.Identity{}, err
	}
	if carriesData(record) {
		*included = append(*included, r)
	}
	return r.Identity(), nil
}

func carriesData(record map[string]any) bool {
	for field := range record {
		switch field {
		case FieldID, FieldType, FieldRelationshipNames:
		default:
			return true
		}
	}
	return false
}

func keysOf(value any) map[string]string {
	switch v := value.(type) {
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, val := range v {
			out[k] = val
		}
		return out
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, val := range v {
			out[k] = formatID(val)
		}
		return out
	default:
		return nil
	}
}

func formatID(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}
