package query

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

var (
	timeType = reflect.TypeOf(time.Time{})
	uuidType = reflect.TypeOf(uuid.UUID{})
)

// Schema maps API field names to columns of a bun model. Fields tagged
// json:"-" are not reachable through the query string.
type Schema struct {
	table  *schema.Table
	fields map[string]*schema.Field
	pks    []string
}

// SchemaFor builds the schema of model, a pointer to a bun model
func SchemaFor(db bun.IDB, model any) *Schema {
	typ := reflect.TypeOf(model)
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	return NewSchema(db.Dialect().Tables().Get(typ))
}

// NewSchema indexes table fields by json name and column name
func NewSchema(table *schema.Table) *Schema {
	s := &Schema{
		table:  table,
		fields: make(map[string]*schema.Field, len(table.Fields)*2),
	}

	for _, field := range table.Fields {
		if field.IsPK {
			s.pks = append(s.pks, field.Name)
		}

		jsonName := jsonFieldName(field.StructField)
		if jsonName == "-" {
			continue
		}
		s.fields[field.Name] = field
		if jsonName != "" {
			s.fields[jsonName] = field
		}
	}
	return s
}

// Lookup returns the field named by an API or column name
func (s *Schema) Lookup(name string) (*schema.Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Column returns the column name for name
func (s *Schema) Column(name string) (string, bool) {
	f, ok := s.Lookup(name)
	if !ok {
		return "", false
	}
	return f.Name, true
}

// PKs returns the primary key columns
func (s *Schema) PKs() []string {
	return s.pks
}

// Coerce converts a raw query value to the Go type of field
func (s *Schema) Coerce(field *schema.Field, raw string) (any, bool) {
	typ := field.IndirectType
	raw = strings.TrimSpace(raw)

	switch typ {
	case timeType:
		return parseTime(raw)
	case uuidType:
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, false
		}
		return id, true
	}

	switch typ.Kind() {
	case reflect.String:
		return raw, true
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		return b, err == nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		return n, err == nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, 64)
		return n, err == nil
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(raw, 64)
		return n, err == nil
	}
	return nil, false
}

func parseTime(raw string) (any, bool) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return nil, false
}

func jsonFieldName(sf reflect.StructField) string {
	tag, ok := sf.Tag.Lookup("json")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	return name
}
