package query

import (
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	KeyPage   = "page"
	KeySort   = "sort"
	KeyLimit  = "limit"
	KeyFields = "fields"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 50
	// MaxPageSize caps limit, larger values are clamped
	MaxPageSize = 1000
	// MaxOffset bounds (page-1)*limit. Pages past it fall back to DefaultPage.
	MaxOffset = math.MaxInt32
	DefaultSort     = "-createdAt"
	VersionField    = "version"
)

var reservedKeys = map[string]struct{}{
	KeyPage:   {},
	KeySort:   {},
	KeyLimit:  {},
	KeyFields: {},
}

// IsReserved reports whether key is a control key rather than a filter
func IsReserved(key string) bool {
	_, ok := reservedKeys[key]
	return ok
}

// Features builds a Descriptor from a raw query string map. Create one per
// request; each step returns the builder so calls chain.
type Features struct {
	raw  map[string]string
	desc Descriptor
}

// New copies raw so later changes to the caller's map do not leak in
func New(raw map[string]string) *Features {
	cp := make(map[string]string, len(raw))
	for k, v := range raw {
		cp[k] = v
	}
	return &Features{raw: cp}
}

// FromValues uses the first value of each key
func FromValues(values url.Values) *Features {
	raw := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			raw[k] = v[0]
		}
	}
	return &Features{raw: raw}
}

// Filter turns every non reserved key into a condition. A key of the
// form field[op] uses op when it is one of gt, gte, lt, lte, eq.
func (f *Features) Filter() *Features {
	keys := make([]string, 0, len(f.raw))
	for k := range f.raw {
		if IsReserved(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	filters := make([]Condition, 0, len(keys))
	for _, k := range keys {
		field, op := parseFilterKey(k)
		if field == "" {
			continue
		}
		filters = append(filters, Condition{Field: field, Op: op, Value: f.raw[k]})
	}
	f.desc.Filters = filters
	return f
}

// parseFilterKey splits "price[gte]" into ("price", OpGte). Keys with an
// unrecognised bracket token keep the full key as the field name, which
// matches no column.
func parseFilterKey(key string) (string, Op) {
	key = strings.TrimSpace(key)
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return key, OpEq
	}

	op, ok := ParseOp(key[open+1 : len(key)-1])
	if !ok {
		return key, OpEq
	}
	return key[:open], op
}

// Sort reads a comma separated list, "-" prefix for descending
func (f *Features) Sort() *Features {
	raw, ok := f.raw[KeySort]
	if !ok || strings.TrimSpace(raw) == "" {
		raw = DefaultSort
	}

	keys := make([]SortKey, 0)
	for _, part := range splitList(raw) {
		desc := strings.HasPrefix(part, "-")
		field := strings.TrimLeft(part, "-+")
		if field == "" {
			continue
		}
		keys = append(keys, SortKey{Field: field, Desc: desc})
	}
	f.desc.Sort = keys
	return f
}

// LimitFields reads a comma separated inclusion list. Without one only
// the version field is excluded.
func (f *Features) LimitFields() *Features {
	fields := splitList(f.raw[KeyFields])
	if len(fields) == 0 {
		f.desc.Projection = Projection{Exclude: []string{VersionField}}
		return f
	}

	include := make([]string, 0, len(fields))
	var exclude []string
	for _, field := range fields {
		if strings.HasPrefix(field, "-") {
			if name := strings.TrimPrefix(field, "-"); name != "" {
				exclude = append(exclude, name)
			}
			continue
		}
		include = append(include, field)
	}

	if len(include) > 0 {
		f.desc.Projection = Projection{Include: include}
	} else {
		f.desc.Projection = Projection{Exclude: exclude}
	}
	return f
}

// Paginate reads page and limit. Anything missing, malformed or not
// positive falls back to the defaults.
func (f *Features) Paginate() *Features {
	page := positiveInt(f.raw[KeyPage], DefaultPage)
	size := min(positiveInt(f.raw[KeyLimit], DefaultPageSize), MaxPageSize)
	if page-1 > MaxOffset/size {
		page = DefaultPage
	}
	f.desc.Page = page
	f.desc.PageSize = size
	return f
}

// All runs the four steps in order
func (f *Features) All() *Features {
	return f.Filter().Sort().LimitFields().Paginate()
}

// Descriptor returns a copy of the current state
func (f *Features) Descriptor() Descriptor {
	d := f.desc
	d.Filters = append([]Condition(nil), f.desc.Filters...)
	d.Sort = append([]SortKey(nil), f.desc.Sort...)
	d.Projection = Projection{
		Include: append([]string(nil), f.desc.Projection.Include...),
		Exclude: append([]string(nil), f.desc.Projection.Exclude...),
	}
	return d
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func positiveInt(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return def
	}
	return n
}
