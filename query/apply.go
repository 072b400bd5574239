package query

import (
	"github.com/uptrace/bun"
)

// matchNothing is used for conditions that can never hold
const matchNothing = "1 = 0"

// Apply composes the descriptor onto q. Filters on unknown fields or with
// values that do not fit the column match nothing. Unknown sort and
// projection fields are skipped. The primary key is always selected and
// breaks sort ties.
func (d Descriptor) Apply(q *bun.SelectQuery, s *Schema) *bun.SelectQuery {
	q = d.ApplyFilters(q, s)

	for _, key := range d.Sort {
		column, ok := s.Column(key.Field)
		if !ok {
			continue
		}
		if key.Desc {
			q = q.OrderExpr("?TableAlias.? DESC", bun.Ident(column))
		} else {
			q = q.OrderExpr("?TableAlias.? ASC", bun.Ident(column))
		}
	}
	if len(d.Sort) > 0 {
		for _, pk := range s.PKs() {
			q = q.OrderExpr("?TableAlias.? ASC", bun.Ident(pk))
		}
	}

	q = d.applyProjection(q, s)

	if d.Paginated() {
		q = q.Limit(d.PageSize).Offset(d.Offset())
	}
	return q
}

// ApplyFilters only adds the WHERE conditions, used for counts
func (d Descriptor) ApplyFilters(q *bun.SelectQuery, s *Schema) *bun.SelectQuery {
	for _, c := range d.Filters {
		field, ok := s.Lookup(c.Field)
		if !ok {
			q = q.Where(matchNothing)
			continue
		}
		value, ok := s.Coerce(field, c.Value)
		if !ok {
			q = q.Where(matchNothing)
			continue
		}
		q = q.Where("?TableAlias.? "+c.Op.SQL()+" ?", bun.Ident(field.Name), value)
	}
	return q
}

func (d Descriptor) applyProjection(q *bun.SelectQuery, s *Schema) *bun.SelectQuery {
	if len(d.Projection.Include) > 0 {
		columns := append([]string(nil), s.PKs()...)
		seen := make(map[string]struct{}, len(columns))
		for _, c := range columns {
			seen[c] = struct{}{}
		}
		for _, name := range d.Projection.Include {
			column, ok := s.Column(name)
			if !ok {
				continue
			}
			if _, dup := seen[column]; dup {
				continue
			}
			seen[column] = struct{}{}
			columns = append(columns, column)
		}
		return q.Column(columns...)
	}

	var exclude []string
	for _, name := range d.Projection.Exclude {
		column, ok := s.Column(name)
		if !ok || isPK(s, column) {
			continue
		}
		exclude = append(exclude, column)
	}
	if len(exclude) > 0 {
		q = q.ExcludeColumn(exclude...)
	}
	return q
}

func isPK(s *Schema, column string) bool {
	for _, pk := range s.PKs() {
		if pk == column {
			return true
		}
	}
	return false
}
