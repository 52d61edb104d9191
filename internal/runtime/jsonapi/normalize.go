package jsonapi

import (
	"slices"
)

// Entities is the normalized form of resources: type, then id.
type Entities map[string]map[string]Resource

// Get looks up a single resource.
func (e Entities) Get(typ, id string) (Resource, bool) {
	r, ok := e[typ][id]
	return r, ok
}

// Len counts resources across all types.
func (e Entities) Len() int {
	n := 0
	for _, byID := range e {
		n += len(byID)
	}
	return n
}

// Types lists the types present, sorted.
func (e Entities) Types() []string {
	types := make([]string, 0, len(e))
	for typ := range e {
		types = append(types, typ)
	}
	slices.Sort(types)
	return types
}

func (e Entities) put(r Resource) {
	byID, ok := e[r.Type]
	if !ok {
		byID = make(map[string]Resource)
		e[r.Type] = byID
	}
	if prev, ok := byID[r.ID]; ok {
		byID[r.ID] = MergeResource(prev, r)
		return
	}
	byID[r.ID] = r.Clone()
}

// Normalize flattens the primary data and included resources of doc into an
// entity map. Resources without a type or id are skipped; a resource that
// appears more than once is field-merged in document order.
func Normalize(doc Document) Entities {
	entities := Entities{}
	for _, r := range doc.Data {
		if r.Type == "" || r.ID == "" {
			continue
		}
		entities.put(r)
	}
	for _, r := range doc.Included {
		if r.Type == "" || r.ID == "" {
			continue
		}
		entities.put(r)
	}
	return entities
}

// IDsByType lists the ids of the primary data per type, in document order.
// A single resource without a type and the null document yield an empty map.
func IDsByType(doc Document) map[string][]string {
	result := map[string][]string{}
	if doc.Many {
		for _, r := range doc.Data {
			if r.Type == "" {
				continue
			}
			result[r.Type] = append(result[r.Type], r.ID)
		}
		return result
	}
	if r, ok := doc.Primary(); ok && r.Type != "" {
		result[r.Type] = []string{r.ID}
	}
	return result
}
