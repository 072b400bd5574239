package query

import (
	"math"
	"strings"
)

// Op is a comparison operator in a filter condition
type Op string

const (
	OpEq  Op = "eq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
)

// ParseOp maps a bracket token to an operator. Only the closed set of
// comparison tokens is recognised.
func ParseOp(token string) (Op, bool) {
	switch Op(strings.ToLower(strings.TrimSpace(token))) {
	case OpGt:
		return OpGt, true
	case OpGte:
		return OpGte, true
	case OpLt:
		return OpLt, true
	case OpLte:
		return OpLte, true
	case OpEq:
		return OpEq, true
	}
	return "", false
}

// SQL returns the comparison operator
func (o Op) SQL() string {
	switch o {
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	default:
		return "="
	}
}

// Condition is a single filter on a field
type Condition struct {
	Field string
	Op    Op
	Value string
}

// SortKey orders results by a field
type SortKey struct {
	Field string
	Desc  bool
}

// Projection selects the returned fields. Include wins over Exclude.
type Projection struct {
	Include []string
	Exclude []string
}

// IsZero reports whether no projection was requested
func (p Projection) IsZero() bool {
	return len(p.Include) == 0 && len(p.Exclude) == 0
}

// Descriptor is the parsed form of a request query string
type Descriptor struct {
	Filters    []Condition
	Sort       []SortKey
	Projection Projection
	Page       int
	PageSize   int
}

// Offset is (Page-1)*PageSize, or 0 when pagination was not requested
// or the product would overflow
func (d Descriptor) Offset() int {
	if d.Page < 1 || d.PageSize < 1 {
		return 0
	}
	if d.Page-1 > math.MaxInt/d.PageSize {
		return 0
	}
	return (d.Page - 1) * d.PageSize
}

// Paginated reports whether Paginate ran
func (d Descriptor) Paginated() bool {
	return d.PageSize > 0
}

// ConditionsFor returns the conditions on field
func (d Descriptor) ConditionsFor(field string) []Condition {
	var out []Condition
	for _, c := range d.Filters {
		if c.Field == field {
			out = append(out, c)
		}
	}
	return out
}
