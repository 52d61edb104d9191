package operation

import (
	"fmt"

	errspkg "github.com/drblury/statetree/internal/runtime/errors"
	"github.com/drblury/statetree/internal/runtime/jsonapi"
)

// Expr names a query expression.
type Expr string

const (
	FindRecordExpr         Expr = "findRecord"
	FindRecordsExpr        Expr = "findRecords"
	FindRelatedRecordExpr  Expr = "findRelatedRecord"
	FindRelatedRecordsExpr Expr = "findRelatedRecords"
)

// FilterOp compares an attribute with a filter value.
type FilterOp string

const (
	Equal            FilterOp = "equal"
	GreaterThan      FilterOp = "gt"
	GreaterThanEqual FilterOp = "gte"
	LessThan         FilterOp = "lt"
	LessThanEqual    FilterOp = "lte"
)

// SortOrder is the direction of a sort specifier.
type SortOrder string

const (
	Ascending  SortOrder = "ascending"
	Descending SortOrder = "descending"
)

// Filter is an attribute predicate. A zero Op means Equal.
type Filter struct {
	Attribute string   `json:"attribute"`
	Value     any      `json:"value"`
	Op        FilterOp `json:"op,omitempty"`
}

// Sort is an attribute sort specifier. A zero Order means Ascending.
type Sort struct {
	Attribute string    `json:"attribute"`
	Order     SortOrder `json:"order,omitempty"`
}

// Page selects a window of results.
type Page struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// Query is a query descriptor produced by a QueryTerm.
type Query struct {
	Expr         Expr
	Target       jsonapi.Identity
	Type         string
	Relationship string
	Filters      []Filter
	Sorts        []Sort
	Page         *Page
}

// Args renders the positional arguments of the query expression.
func (q Query) Args() []any {
	switch q.Expr {
	case FindRecordExpr:
		return []any{q.Target}
	case FindRecordsExpr:
		return []any{q.Type}
	case FindRelatedRecordExpr, FindRelatedRecordsExpr:
		return []any{q.Target, q.Relationship}
	default:
		return nil
	}
}

// QueryTerm builds a Query. Refinements apply in call order; the first invalid
// refinement is reported by Query.
type QueryTerm struct {
	q   Query
	err error
}

func FindRecord(typ, id string) *QueryTerm {
	return &QueryTerm{q: Query{Expr: FindRecordExpr, Target: jsonapi.Identity{Type: typ, ID: id}}}
}

func FindRecords(typ string) *QueryTerm {
	return &QueryTerm{q: Query{Expr: FindRecordsExpr, Type: typ}}
}

func FindRelatedRecord(typ, id, relationship string) *QueryTerm {
	return &QueryTerm{q: Query{Expr: FindRelatedRecordExpr, Target: jsonapi.Identity{Type: typ, ID: id}, Relationship: relationship}}
}

func FindRelatedRecords(typ, id, relationship string) *QueryTerm {
	return &QueryTerm{q: Query{Expr: FindRelatedRecordsExpr, Target: jsonapi.Identity{Type: typ, ID: id}, Relationship: relationship}}
}

// Filter appends conjunctive attribute filters.
func (t *QueryTerm) Filter(filters ...Filter) *QueryTerm {
	for _, f := range filters {
		if f.Attribute == "" {
			t.fail("filter attribute is required")
			continue
		}
		switch f.Op {
		case "":
			f.Op = Equal
		case Equal, GreaterThan, GreaterThanEqual, LessThan, LessThanEqual:
		default:
			t.fail("unknown filter op %q", f.Op)
			continue
		}
		t.q.Filters = append(t.q.Filters, f)
	}
	return t
}

// Sort appends sort specifiers; earlier specifiers take precedence.
func (t *QueryTerm) Sort(sorts ...Sort) *QueryTerm {
	for _, s := range sorts {
		if s.Attribute == "" {
			t.fail("sort attribute is required")
			continue
		}
		switch s.Order {
		case "":
			s.Order = Ascending
		case Ascending, Descending:
		default:
			t.fail("unknown sort order %q", s.Order)
			continue
		}
		t.q.Sorts = append(t.q.Sorts, s)
	}
	return t
}

// Page restricts the result window.
func (t *QueryTerm) Page(p Page) *QueryTerm {
	if p.Offset < 0 || p.Limit < 0 {
		t.fail("page offset and limit must not be negative")
		return t
	}
	t.q.Page = &p
	return t
}

// Query returns the built descriptor.
func (t *QueryTerm) Query() (Query, error) {
	if t.err != nil {
		return Query{}, t.err
	}
	return t.q, nil
}

// MustQuery is like Query but panics on an invalid refinement. Use it for
// terms built without Filter, Sort or Page.
func (t *QueryTerm) MustQuery() Query {
	q, err := t.Query()
	if err != nil {
		panic(err)
	}
	return q
}

func (t *QueryTerm) fail(format string, args ...any) {
	if t.err != nil {
		return
	}
	t.err = fmt.Errorf("%w: %s", errspkg.ErrInvalidQuery, fmt.Sprintf(format, args...))
}
