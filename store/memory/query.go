package memory

import (
	"cmp"
	"reflect"
	"slices"
	"time"

	"github.com/drblury/statetree/internal/runtime/jsonapi"
	"github.com/drblury/statetree/internal/runtime/operation"
)

// findRecords walks the records of q.Type in insertion order, keeps those
// matching every filter, sorts them stably and cuts the requested page. A
// page limit of zero means no limit.
func (s *Store) findRecords(q operation.Query) []jsonapi.Resource {
	byID := s.records[q.Type]
	matched := make([]jsonapi.Resource, 0, len(byID))
	for _, id := range s.order[q.Type] {
		r, ok := byID[id]
		if !ok || !matchesAll(r, q.Filters) {
			continue
		}
		matched = append(matched, r)
	}

	if len(q.Sorts) > 0 {
		slices.SortStableFunc(matched, func(a, b jsonapi.Resource) int {
			for _, key := range q.Sorts {
				c := compareForSort(a.Attributes[key.Attribute], b.Attributes[key.Attribute])
				if key.Order == operation.Descending {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})
	}

	if q.Page != nil {
		matched = page(matched, *q.Page)
	}

	out := make([]jsonapi.Resource, len(matched))
	for i, r := range matched {
		out[i] = r.Clone()
	}
	return out
}

func page(rs []jsonapi.Resource, p operation.Page) []jsonapi.Resource {
	if p.Offset >= len(rs) {
		return nil
	}
	rs = rs[p.Offset:]
	if p.Limit > 0 && p.Limit < len(rs) {
		rs = rs[:p.Limit]
	}
	return rs
}

func matchesAll(r jsonapi.Resource, filters []operation.Filter) bool {
	for _, f := range filters {
		if !matches(r.Attributes[f.Attribute], f) {
			return false
		}
	}
	return true
}

func matches(value any, f operation.Filter) bool {
	if f.Op == "" || f.Op == operation.Equal {
		if c, ok := compareValues(value, f.Value); ok {
			return c == 0
		}
		return reflect.DeepEqual(value, f.Value)
	}
	c, ok := compareValues(value, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case operation.GreaterThan:
		return c > 0
	case operation.GreaterThanEqual:
		return c >= 0
	case operation.LessThan:
		return c < 0
	case operation.LessThanEqual:
		return c <= 0
	default:
		return false
	}
}

// compareForSort orders missing values after present ones and falls back to
// equality for values that cannot be compared.
func compareForSort(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	c, _ := compareValues(a, b)
	return c
}

// compareValues compares numbers with numbers, strings with strings, times
// with times and bools with bools.
func compareValues(a, b any) (int, bool) {
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			return cmp.Compare(x, y), true
		}
		return 0, false
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return cmp.Compare(x, y), true
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), true
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			default:
				return 1, true
			}
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
