package query

import (
	"bytes"
	"encoding/json"

	"github.com/uptrace/bun/schema"
)

// Shape trims encoded documents to the fields p selects. docs is a slice
// of models (or a single model) of the schema's table. Columns left out of
// the query would otherwise encode as zero values. The primary key is
// always kept and docs is returned untouched when p is zero.
func (s *Schema) Shape(docs any, p Projection) (any, error) {
	if p.IsZero() {
		return docs, nil
	}

	raw, err := json.Marshal(docs)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var row map[string]any
		if err := dec.Decode(&row); err != nil {
			return nil, err
		}
		s.trim(row, p)
		return row, nil
	}

	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, err
	}
	for _, row := range rows {
		s.trim(row, p)
	}
	return rows, nil
}

func (s *Schema) trim(row map[string]any, p Projection) {
	pks := make(map[string]struct{}, len(s.pks))
	for _, field := range s.table.PKs {
		pks[apiName(field)] = struct{}{}
	}

	if len(p.Include) > 0 {
		keep := s.apiNames(p.Include)
		for key := range row {
			_, included := keep[key]
			_, pk := pks[key]
			if !included && !pk {
				delete(row, key)
			}
		}
		return
	}

	for key := range s.apiNames(p.Exclude) {
		if _, pk := pks[key]; !pk {
			delete(row, key)
		}
	}
}

// apiNames resolves API or column names to encoded field names
func (s *Schema) apiNames(names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, name := range names {
		if field, ok := s.Lookup(name); ok {
			out[apiName(field)] = struct{}{}
		}
	}
	return out
}

func apiName(field *schema.Field) string {
	if name := jsonFieldName(field.StructField); name != "" {
		return name
	}
	return field.GoName
}
