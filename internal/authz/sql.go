package authz

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// WhereSQL renders the predicates of q as a PostgreSQL WHERE clause using
// positional parameters starting at firstArg. An unrestricted query renders
// an empty clause.
func (q Query) WhereSQL(firstArg int) (string, []any) {
	if len(q.preds) == 0 {
		return "", nil
	}
	pos := firstArg
	conds := make([]string, 0, len(q.preds))
	var args []any
	for _, p := range q.preds {
		switch p.op {
		case opNone:
			conds = append(conds, "FALSE")
		case opEq:
			conds = append(conds, fmt.Sprintf("%s = $%d", quoteIdent(p.column), pos))
			args = append(args, p.value)
			pos++
		case opSearch:
			ors := make([]string, len(p.columns))
			for i, col := range p.columns {
				ors[i] = fmt.Sprintf("%s::text ILIKE $%d", quoteIdent(col), pos)
			}
			conds = append(conds, "("+strings.Join(ors, " OR ")+")")
			args = append(args, "%"+escapeLike(p.term)+"%")
			pos++
		}
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// OrderSQL renders the ordering of q, tie-break included.
func (q Query) OrderSQL() string {
	orders := q.Orders()
	parts := make([]string, len(orders))
	for i, o := range orders {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts[i] = quoteIdent(o.Column) + " " + dir
	}
	return "ORDER BY " + strings.Join(parts, ", ")
}

// PageSQL renders LIMIT/OFFSET with positional parameters starting at
// firstArg. Unbounded queries render nothing.
func (q Query) PageSQL(firstArg int) (string, []any) {
	if q.limit <= 0 {
		return "", nil
	}
	return fmt.Sprintf("LIMIT $%d OFFSET $%d", firstArg, firstArg+1), []any{q.limit, q.offset}
}

// SelectSQL renders the full suffix after FROM: WHERE, ORDER BY and the page
// window.
func (q Query) SelectSQL() (string, []any) {
	where, args := q.WhereSQL(1)
	page, pageArgs := q.PageSQL(len(args) + 1)
	parts := []string{where, q.OrderSQL(), page}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " "), append(args, pageArgs...)
}

func quoteIdent(col string) string {
	return pgx.Identifier(strings.Split(col, ".")).Sanitize()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}
