package repositories

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

type condition struct {
	column string
	op     string
	value  any
}

type ordering struct {
	column string
	desc   bool
}

// Query is a small filter builder for single-table statements.
// Column names must be trusted identifiers; values are always bound as parameters.
type Query struct {
	table  string
	conds  []condition
	orders []ordering
	limit  int
}

// From starts a query against table.
func From(table string) *Query {
	return &Query{table: table}
}

func (q *Query) Eq(column string, value any) *Query {
	q.conds = append(q.conds, condition{column, "=", value})
	return q
}

func (q *Query) Neq(column string, value any) *Query {
	q.conds = append(q.conds, condition{column, "<>", value})
	return q
}

func (q *Query) Gt(column string, value any) *Query {
	q.conds = append(q.conds, condition{column, ">", value})
	return q
}

func (q *Query) Lt(column string, value any) *Query {
	q.conds = append(q.conds, condition{column, "<", value})
	return q
}

// In matches column against any of values.
func (q *Query) In(column string, values []string) *Query {
	q.conds = append(q.conds, condition{column, "= ANY", pq.Array(values)})
	return q
}

// NotTrue matches rows where column is false or null.
func (q *Query) NotTrue(column string) *Query {
	q.conds = append(q.conds, condition{column, "IS NOT TRUE", nil})
	return q
}

// Order appends a sort term. Later terms break ties of earlier ones.
func (q *Query) Order(column string, desc bool) *Query {
	q.orders = append(q.orders, ordering{column, desc})
	return q
}

func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Select renders a SELECT statement and its bind arguments.
func (q *Query) Select(columns ...string) (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(columns, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(q.table)
	args := q.writeWhere(&sb, nil)
	for i, o := range q.orders {
		if i == 0 {
			sb.WriteString(" ORDER BY ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(o.column)
		if o.desc {
			sb.WriteString(" DESC")
		} else {
			sb.WriteString(" ASC")
		}
	}
	if q.limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.limit)
	}
	return sb.String(), args
}

// Count renders a SELECT COUNT(*) statement.
func (q *Query) Count() (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT COUNT(*) FROM ")
	sb.WriteString(q.table)
	args := q.writeWhere(&sb, nil)
	return sb.String(), args
}

// Update renders an UPDATE statement setting column to value for every matching row.
func (q *Query) Update(column string, value any) (string, []any) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "UPDATE %s SET %s = $1", q.table, column)
	args := q.writeWhere(&sb, []any{value})
	return sb.String(), args
}

func (q *Query) writeWhere(sb *strings.Builder, args []any) []any {
	for i, c := range q.conds {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		switch c.op {
		case "IS NOT TRUE":
			fmt.Fprintf(sb, "%s IS NOT TRUE", c.column)
		case "= ANY":
			args = append(args, c.value)
			fmt.Fprintf(sb, "%s = ANY($%d)", c.column, len(args))
		default:
			args = append(args, c.value)
			fmt.Fprintf(sb, "%s %s $%d", c.column, c.op, len(args))
		}
	}
	return args
}
