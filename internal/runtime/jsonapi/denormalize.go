package jsonapi

// Denormalize rebuilds the record typ/id from entities as a plain map: the id,
// every attribute at top level, keys under "keys" and each known relationship
// resolved to the related record. A related record that is missing, or that
// would close a cycle, is represented by its identity only.
func Denormalize(entities Entities, typ, id string) (map[string]any, bool) {
	r, ok := entities.Get(typ, id)
	if !ok {
		return nil, false
	}
	return build(entities, r, map[Identity]bool{}), true
}

func build(entities Entities, r Resource, path map[Identity]bool) map[string]any {
	self := r.Identity()
	path[self] = true
	defer delete(path, self)

	record := make(map[string]any, len(r.Attributes)+len(r.Relationships)+1)
	for name, value := range r.Attributes {
		record[name] = value
	}
	if len(r.Keys) > 0 {
		keys := make(map[string]any, len(r.Keys))
		for k, v := range r.Keys {
			keys[k] = v
		}
		record["keys"] = keys
	}
	for name, rel := range r.Relationships {
		if rel.Many {
			related := make([]any, 0, len(rel.Members))
			for _, member := range rel.Members {
				related = append(related, resolve(entities, member, path))
			}
			record[name] = related
			continue
		}
		if rel.One == nil {
			record[name] = nil
			continue
		}
		record[name] = resolve(entities, *rel.One, path)
	}
	record["id"] = r.ID
	return record
}

func resolve(entities Entities, ident Identity, path map[Identity]bool) map[string]any {
	if path[ident] {
		return stub(ident)
	}
	target, ok := entities.Get(ident.Type, ident.ID)
	if !ok {
		return stub(ident)
	}
	return build(entities, target, path)
}

func stub(ident Identity) map[string]any {
	return map[string]any{"id": ident.ID, "type": ident.Type}
}
