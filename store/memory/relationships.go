package memory

import (
	"github.com/drblury/statetree/internal/runtime/jsonapi"
	"github.com/drblury/statetree/internal/runtime/schema"
)

// txn applies one mutation and remembers every record it touched besides the
// primary one, so the result can carry them as included data.
type txn struct {
	s       *Store
	touched []jsonapi.Identity
	seen    map[jsonapi.Identity]bool
}

func newTxn(s *Store) *txn {
	return &txn{s: s, seen: map[jsonapi.Identity]bool{}}
}

func (t *txn) touch(id jsonapi.Identity) {
	if t.seen[id] {
		return
	}
	t.seen[id] = true
	t.touched = append(t.touched, id)
}

func (t *txn) result(primary jsonapi.Identity) jsonapi.Document {
	included := make([]jsonapi.Resource, 0, len(t.touched))
	for _, id := range t.touched {
		if id == primary {
			continue
		}
		if r, ok := t.s.get(id); ok {
			included = append(included, r.Clone())
		}
	}
	return jsonapi.Single(t.s.resolve(primary), included...)
}

func (t *txn) touchedResources() []jsonapi.Resource {
	out := make([]jsonapi.Resource, 0, len(t.touched))
	for _, id := range t.touched {
		if r, ok := t.s.get(id); ok {
			out = append(out, r.Clone())
		}
	}
	return out
}

// load returns a private copy of the record, creating an identity-only stub
// when it does not exist yet.
func (t *txn) load(id jsonapi.Identity) jsonapi.Resource {
	if r, ok := t.s.get(id); ok {
		return r.Clone()
	}
	return jsonapi.Resource{Type: id.Type, ID: id.ID}
}

func (t *txn) save(r jsonapi.Resource) {
	t.s.set(r)
	t.touch(r.Identity())
}

// put stores a whole record and reconciles the inverse side of every
// relationship that changed.
func (t *txn) put(record jsonapi.Resource) jsonapi.Identity {
	record = record.Clone()
	id := record.Identity()
	previous, _ := t.s.get(id)

	t.s.set(record)
	for name := range unionKeys(previous.Relationships, record.Relationships) {
		before := previous.Relationships[name].Identities()
		after := record.Relationships[name].Identities()
		for _, gone := range difference(before, after) {
			t.unlinkInverse(id, name, gone)
		}
		for _, added := range difference(after, before) {
			t.linkInverse(id, name, added)
		}
	}
	return id
}

func (t *txn) remove(id jsonapi.Identity) {
	record, ok := t.s.get(id)
	if !ok {
		return
	}
	t.s.delete(id)
	for name, rel := range record.Relationships {
		for _, related := range rel.Identities() {
			t.unlinkInverse(id, name, related)
		}
	}
}

func (t *txn) addToRelated(owner jsonapi.Identity, name string, related jsonapi.Identity) {
	t.addMember(owner, name, related)
	t.linkInverse(owner, name, related)
}

func (t *txn) removeFromRelated(owner jsonapi.Identity, name string, related jsonapi.Identity) {
	t.removeMember(owner, name, related)
	t.unlinkInverse(owner, name, related)
}

func (t *txn) replaceRelatedRecords(owner jsonapi.Identity, name string, related []jsonapi.Identity) {
	record := t.load(owner)
	before := record.Relationships[name].Identities()

	if record.Relationships == nil {
		record.Relationships = map[string]jsonapi.Relationship{}
	}
	members := append(make([]jsonapi.Identity, 0, len(related)), related...)
	record.Relationships[name] = jsonapi.Relationship{Many: true, Members: members}
	t.s.set(record)

	for _, gone := range difference(before, related) {
		t.unlinkInverse(owner, name, gone)
	}
	for _, added := range difference(related, before) {
		t.linkInverse(owner, name, added)
	}
}

func (t *txn) replaceRelatedRecord(owner jsonapi.Identity, name string, related *jsonapi.Identity) {
	record := t.load(owner)
	previous := record.Relationships[name].One
	if previous != nil && (related == nil || *previous != *related) {
		t.unlinkInverse(owner, name, *previous)
	}
	t.setOne(owner, name, related)
	if related != nil && (previous == nil || *previous != *related) {
		t.linkInverse(owner, name, *related)
	}
}

// linkInverse records owner on the inverse side of owner.name -> related.
func (t *txn) linkInverse(owner jsonapi.Identity, name string, related jsonapi.Identity) {
	inverse, kind, ok := t.inverseOf(owner.Type, name, related.Type)
	if !ok {
		return
	}
	if kind == schema.HasMany {
		t.addMember(related, inverse, owner)
		return
	}
	current := t.load(related).Relationships[inverse].One
	if current != nil && *current != owner {
		// related moves away from its previous owner.
		t.detach(*current, name, related)
	}
	t.setOne(related, inverse, &owner)
}

// unlinkInverse drops owner from the inverse side of owner.name -> related.
func (t *txn) unlinkInverse(owner jsonapi.Identity, name string, related jsonapi.Identity) {
	inverse, kind, ok := t.inverseOf(owner.Type, name, related.Type)
	if !ok {
		return
	}
	if _, exists := t.s.get(related); !exists {
		return
	}
	if kind == schema.HasMany {
		t.removeMember(related, inverse, owner)
		return
	}
	if current := t.load(related).Relationships[inverse].One; current != nil && *current == owner {
		t.setOne(related, inverse, nil)
	}
}

// detach removes related from owner.name without touching inverses.
func (t *txn) detach(owner jsonapi.Identity, name string, related jsonapi.Identity) {
	if _, exists := t.s.get(owner); !exists {
		return
	}
	decl, ok := t.s.schema.ModelHasRelationship(owner.Type, name)
	if !ok {
		return
	}
	if decl.Kind == schema.HasMany {
		t.removeMember(owner, name, related)
		return
	}
	if current := t.load(owner).Relationships[name].One; current != nil && *current == related {
		t.setOne(owner, name, nil)
	}
}

func (t *txn) inverseOf(typ, name, relatedType string) (string, schema.Kind, bool) {
	decl, ok := t.s.schema.ModelHasRelationship(typ, name)
	if !ok || decl.Inverse == "" || !t.s.schema.HasModel(relatedType) {
		return "", "", false
	}
	inverse, ok := t.s.schema.ModelHasRelationship(relatedType, decl.Inverse)
	if !ok {
		return "", "", false
	}
	return decl.Inverse, inverse.Kind, true
}

func (t *txn) addMember(owner jsonapi.Identity, name string, related jsonapi.Identity) {
	record := t.load(owner)
	rel := record.Relationships[name]
	for _, member := range rel.Members {
		if member == related {
			t.save(record)
			return
		}
	}
	if record.Relationships == nil {
		record.Relationships = map[string]jsonapi.Relationship{}
	}
	record.Relationships[name] = jsonapi.Relationship{Many: true, Members: append(rel.Members, related)}
	t.save(record)
}

func (t *txn) removeMember(owner jsonapi.Identity, name string, related jsonapi.Identity) {
	record := t.load(owner)
	rel, ok := record.Relationships[name]
	if !ok {
		t.save(record)
		return
	}
	members := make([]jsonapi.Identity, 0, len(rel.Members))
	for _, member := range rel.Members {
		if member != related {
			members = append(members, member)
		}
	}
	record.Relationships[name] = jsonapi.Relationship{Many: true, Members: members}
	t.save(record)
}

func (t *txn) setOne(owner jsonapi.Identity, name string, related *jsonapi.Identity) {
	record := t.load(owner)
	if record.Relationships == nil {
		record.Relationships = map[string]jsonapi.Relationship{}
	}
	if related == nil {
		record.Relationships[name] = jsonapi.Relationship{}
	} else {
		one := *related
		record.Relationships[name] = jsonapi.Relationship{One: &one}
	}
	t.save(record)
}

func unionKeys(a, b map[string]jsonapi.Relationship) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

// difference returns the identities of a that are not in b, in order.
func difference(a, b []jsonapi.Identity) []jsonapi.Identity {
	if len(a) == 0 {
		return nil
	}
	in := make(map[jsonapi.Identity]bool, len(b))
	for _, id := range b {
		in[id] = true
	}
	var out []jsonapi.Identity
	for _, id := range a {
		if !in[id] {
			out = append(out, id)
		}
	}
	return out
}
