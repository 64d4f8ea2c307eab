package database

import (
	"fmt"
	"strings"
)

// Filter is an equality condition on a single column.
type Filter struct {
	Column string
	Value  any
}

// Query describes a filtered, ordered and limited read of one collection.
// A zero Limit means no limit.
type Query struct {
	Filters   []Filter
	OrderBy   string
	Ascending bool
	Limit     int
}

// Where returns a copy of q with an additional equality filter.
func (q Query) Where(column string, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Column: column, Value: value})
	return q
}

// buildSelect renders q against table. Only columns in the table's column list
// may be filtered or ordered on.
func (q Query) buildSelect(table string, columns []string) (string, []any, error) {
	allowed := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		allowed[c] = struct{}{}
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(columns, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(table)

	args := make([]any, 0, len(q.Filters)+1)
	for i, f := range q.Filters {
		if _, ok := allowed[f.Column]; !ok {
			return "", nil, fmt.Errorf("unknown column %q for %s", f.Column, table)
		}
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		args = append(args, f.Value)
		fmt.Fprintf(&sb, "%s = $%d", f.Column, len(args))
	}

	if q.OrderBy != "" {
		if _, ok := allowed[q.OrderBy]; !ok {
			return "", nil, fmt.Errorf("unknown order column %q for %s", q.OrderBy, table)
		}
		dir := "DESC"
		if q.Ascending {
			dir = "ASC"
		}
		fmt.Fprintf(&sb, " ORDER BY %s %s", q.OrderBy, dir)
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}

	return sb.String(), args, nil
}
