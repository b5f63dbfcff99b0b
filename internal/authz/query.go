package authz

import (
	"fmt"
	"reflect"
	"strings"
)

type predicateOp int

const (
	opEq predicateOp = iota + 1
	opSearch
	opNone
)

// Predicate is one conjunct of a Query.
type Predicate struct {
	op      predicateOp
	column  string
	value   any
	term    string
	columns []string
}

// Eq matches rows whose column equals value.
func Eq(column string, value any) Predicate {
	return Predicate{op: opEq, column: column, value: normalizeValue(value)}
}

// Search matches rows where any of columns contains term, ignoring case.
// An empty term matches every row.
func Search(term string, columns ...string) Predicate {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return Predicate{op: opSearch, term: strings.TrimSpace(term), columns: cols}
}

// None matches no row.
func None() Predicate { return Predicate{op: opNone} }

func (p Predicate) key() string {
	switch p.op {
	case opEq:
		return fmt.Sprintf("eq:%s:%T:%v", p.column, p.value, p.value)
	case opSearch:
		return fmt.Sprintf("search:%s:%s", strings.Join(p.columns, ","), p.term)
	case opNone:
		return "none"
	default:
		return ""
	}
}

func (p Predicate) trivial() bool {
	return p.op == 0 || (p.op == opSearch && (p.term == "" || len(p.columns) == 0))
}

// Order is one sort key.
type Order struct {
	Column string
	Desc   bool
}

// TieBreakColumn is appended, descending, to every ordering so equal rows
// paginate deterministically.
const TieBreakColumn = "id"

// Query is an immutable conjunction of predicates with ordering and a page
// window. Methods return modified copies.
type Query struct {
	resource Resource
	preds    []Predicate
	order    []Order
	limit    int
	offset   int
}

// NewQuery starts an unrestricted query over resource.
func NewQuery(resource Resource) Query {
	return Query{resource: resource}
}

// Resource returns the queried module.
func (q Query) Resource() Resource { return q.resource }

// Where adds predicates. Predicates already present are not repeated.
func (q Query) Where(preds ...Predicate) Query {
	out := q.clone()
	seen := make(map[string]struct{}, len(out.preds)+len(preds))
	for _, p := range out.preds {
		seen[p.key()] = struct{}{}
	}
	for _, p := range preds {
		if p.trivial() {
			continue
		}
		k := p.key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out.preds = append(out.preds, p)
	}
	return out
}

// OrderBy appends a sort key.
func (q Query) OrderBy(column string, desc bool) Query {
	out := q.clone()
	out.order = append(out.order, Order{Column: column, Desc: desc})
	return out
}

// Page sets a one-based page window.
func (q Query) Page(page, perPage int) Query {
	out := q.clone()
	if perPage <= 0 {
		out.limit, out.offset = 0, 0
		return out
	}
	if page <= 0 {
		page = 1
	}
	out.limit = perPage
	out.offset = (page - 1) * perPage
	return out
}

// Limit returns the page size, zero when unbounded.
func (q Query) Limit() int { return q.limit }

// Offset returns the number of rows skipped.
func (q Query) Offset() int { return q.offset }

// Empty reports whether the query can match no row.
func (q Query) Empty() bool {
	for _, p := range q.preds {
		if p.op == opNone {
			return true
		}
	}
	return false
}

// Orders returns the sort keys. Unless the caller already orders by id, a
// descending id key is appended as the final tie-break.
func (q Query) Orders() []Order {
	out := make([]Order, 0, len(q.order)+1)
	for _, o := range q.order {
		out = append(out, o)
		if o.Column == TieBreakColumn {
			return out
		}
	}
	return append(out, Order{Column: TieBreakColumn, Desc: true})
}

// Predicates returns the conjuncts, for diagnostics.
func (q Query) Predicates() []Predicate {
	out := make([]Predicate, len(q.preds))
	copy(out, q.preds)
	return out
}

func (q Query) clone() Query {
	out := q
	out.preds = append([]Predicate(nil), q.preds...)
	out.order = append([]Order(nil), q.order...)
	return out
}

func normalizeValue(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int64(rv.Uint())
	case reflect.String:
		return rv.String()
	default:
		return v
	}
}
