package authz

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Row exposes column values to in-memory query evaluation.
type Row interface {
	Field(column string) any
}

// Matches reports whether row satisfies every predicate of q.
func (q Query) Matches(row Row) bool {
	for _, p := range q.preds {
		if !p.matches(row) {
			return false
		}
	}
	return true
}

func (p Predicate) matches(row Row) bool {
	switch p.op {
	case opNone:
		return false
	case opEq:
		return normalizeValue(row.Field(columnName(p.column))) == p.value
	case opSearch:
		folder := cases.Fold()
		needle := folder.String(p.term)
		for _, col := range p.columns {
			v := row.Field(columnName(col))
			if v == nil {
				continue
			}
			if strings.Contains(folder.String(fmt.Sprint(v)), needle) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// Apply filters, orders and pages rows the way the SQL rendering of q would.
func Apply[R Row](q Query, rows []R) []R {
	out := make([]R, 0, len(rows))
	for _, r := range rows {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	orders := q.Orders()
	sort.SliceStable(out, func(i, j int) bool {
		for _, o := range orders {
			c := compareValues(out[i].Field(columnName(o.Column)), out[j].Field(columnName(o.Column)))
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	if q.offset > 0 {
		if q.offset >= len(out) {
			return out[:0]
		}
		out = out[q.offset:]
	}
	if q.limit > 0 && len(out) > q.limit {
		out = out[:q.limit]
	}
	return out
}

func columnName(col string) string {
	if i := strings.LastIndexByte(col, '.'); i >= 0 {
		return col[i+1:]
	}
	return col
}

func compareValues(a, b any) int {
	a, b = normalizeValue(a), normalizeValue(b)
	switch x := a.(type) {
	case int64:
		if y, ok := b.(int64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
