// Package jsonapi models JSON:API documents and the flat, normalized entity
// map the state tree keeps them in.
package jsonapi

import (
	"fmt"

	"github.com/drblury/statetree/internal/runtime/jsoncodec"
)

// Identity is a resource identifier object.
type Identity struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func (i Identity) String() string {
	return i.Type + ":" + i.ID
}

// Relationship is the linkage of one relationship. Many selects between the
// to-many Members and the to-one One; a nil One is an empty to-one link.
type Relationship struct {
	Many    bool
	One     *Identity
	Members []Identity
}

// ToOne links a single record. An empty id yields an empty link.
func ToOne(typ, id string) Relationship {
	if id == "" {
		return Relationship{}
	}
	return Relationship{One: &Identity{Type: typ, ID: id}}
}

// ToMany links the given ids, all of type typ, in order.
func ToMany(typ string, ids ...string) Relationship {
	members := make([]Identity, 0, len(ids))
	for _, id := range ids {
		members = append(members, Identity{Type: typ, ID: id})
	}
	return Relationship{Many: true, Members: members}
}

// Identities returns the linked identities in order.
func (r Relationship) Identities() []Identity {
	if r.Many {
		return r.Members
	}
	if r.One == nil {
		return nil
	}
	return []Identity{*r.One}
}

// Clone returns a copy that shares no slices or pointers with r.
func (r Relationship) Clone() Relationship {
	out := Relationship{Many: r.Many}
	if r.One != nil {
		one := *r.One
		out.One = &one
	}
	if r.Members != nil {
		out.Members = append(make([]Identity, 0, len(r.Members)), r.Members...)
	}
	return out
}

type relationshipWire struct {
	Data any `json:"data"`
}

func (r Relationship) MarshalJSON() ([]byte, error) {
	switch {
	case r.Many:
		members := r.Members
		if members == nil {
			members = []Identity{}
		}
		return jsoncodec.Marshal(relationshipWire{Data: members})
	case r.One != nil:
		return jsoncodec.Marshal(relationshipWire{Data: r.One})
	default:
		return jsoncodec.Marshal(relationshipWire{Data: nil})
	}
}

func (r *Relationship) UnmarshalJSON(data []byte) error {
	var wire relationshipWire
	if err := jsoncodec.Unmarshal(data, &wire); err != nil {
		return err
	}
	switch linkage := wire.Data.(type) {
	case nil:
		*r = Relationship{}
	case []any:
		var members []Identity
		if err := recode(linkage, &members); err != nil {
			return fmt.Errorf("decode to-many linkage: %w", err)
		}
		if members == nil {
			members = []Identity{}
		}
		*r = Relationship{Many: true, Members: members}
	case map[string]any:
		var one Identity
		if err := recode(linkage, &one); err != nil {
			return fmt.Errorf("decode to-one linkage: %w", err)
		}
		*r = Relationship{One: &one}
	default:
		return fmt.Errorf("unexpected relationship linkage %T", wire.Data)
	}
	return nil
}

// Resource is a resource object. Keys carries secondary identifiers such as a
// remote id.
type Resource struct {
	Type          string                  `json:"type"`
	ID            string                  `json:"id"`
	Keys          map[string]string       `json:"keys,omitempty"`
	Attributes    map[string]any          `json:"attributes,omitempty"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
}

// Identity returns the resource identifier of r.
func (r Resource) Identity() Identity {
	return Identity{Type: r.Type, ID: r.ID}
}

// Clone returns a copy of r whose maps and linkages are not shared.
func (r Resource) Clone() Resource {
	out := Resource{Type: r.Type, ID: r.ID}
	if r.Keys != nil {
		out.Keys = make(map[string]string, len(r.Keys))
		for k, v := range r.Keys {
			out.Keys[k] = v
		}
	}
	if r.Attributes != nil {
		out.Attributes = make(map[string]any, len(r.Attributes))
		for k, v := range r.Attributes {
			out.Attributes[k] = v
		}
	}
	if r.Relationships != nil {
		out.Relationships = make(map[string]Relationship, len(r.Relationships))
		for k, v := range r.Relationships {
			out.Relationships[k] = v.Clone()
		}
	}
	return out
}

// MergeResource folds next into prev field by field: keys, attributes and
// relationships present in next overwrite their namesakes in prev, everything
// else in prev survives. Neither argument is modified.
func MergeResource(prev, next Resource) Resource {
	out := Resource{Type: next.Type, ID: next.ID}
	if out.Type == "" {
		out.Type = prev.Type
	}
	if out.ID == "" {
		out.ID = prev.ID
	}
	out.Keys = mergeMaps(prev.Keys, next.Keys)
	out.Attributes = mergeMaps(prev.Attributes, next.Attributes)
	out.Relationships = mergeMaps(prev.Relationships, next.Relationships)
	return out
}

func mergeMaps[V any](prev, next map[string]V) map[string]V {
	if len(prev) == 0 && len(next) == 0 {
		return nil
	}
	out := make(map[string]V, len(prev)+len(next))
	for k, v := range prev {
		out[k] = v
	}
	for k, v := range next {
		out[k] = v
	}
	return out
}

func recode(in any, out any) error {
	data, err := jsoncodec.Marshal(in)
	if err != nil {
		return err
	}
	return jsoncodec.Unmarshal(data, out)
}
