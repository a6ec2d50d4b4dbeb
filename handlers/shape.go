package handlers

import (
	"fmt"
	"strings"

	"github.com/infobridge/infobridge/backend"
	"github.com/infobridge/infobridge/query"
	"github.com/infobridge/infobridge/query/rules"
)

const (
	typeString   = "string"
	typeLongLong = "long long"
)

// shapeRow builds one output row holding exactly one value per field.
func shapeRow(fields []query.Field, fm FieldMap, src backend.Row, table string) (backend.Row, error) {
	row := make(backend.Row, len(fields))
	for _, f := range fields {
		v, err := resolveValue(fm.Resolve(f.Key), src, table)
		if err != nil {
			return nil, err
		}
		row[f.Name] = v
	}
	return row, nil
}

func resolveValue(src Source, row backend.Row, table string) (interface{}, error) {
	switch src.Kind {
	case SourceField:
		return lookup(row, src.Value), nil
	case SourceStatic:
		return src.Value, nil
	case SourceTable:
		return table, nil
	default:
		return nil, query.NewFatalRewriteError("invalid field source kind %d", src.Kind)
	}
}

// lookup reads key off row, falling back to a case-insensitive match.
// Missing keys read as nil.
func lookup(row backend.Row, key string) interface{} {
	if v, ok := row[key]; ok {
		return v
	}
	for k, v := range row {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return nil
}

func lookupString(row backend.Row, key string) string {
	switch v := lookup(row, key).(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func stringColumns(fields []query.Field) []backend.Column {
	columns := make([]backend.Column, len(fields))
	for i, f := range fields {
		columns[i] = backend.Column{Name: f.Name, Type: typeString}
	}
	return columns
}

// expandStar replaces a bare * with the FieldMap's columns in declaration order.
func expandStar(fields []query.Field, fm FieldMap) []query.Field {
	var out []query.Field
	for _, f := range fields {
		if !f.IsStar() {
			out = append(out, f)
			continue
		}
		for _, col := range fm.Columns() {
			out = append(out, query.NewField(col))
		}
	}
	return out
}

// stripRegexColumns drops every synthetic regex column and value.
func stripRegexColumns(res backend.Result) backend.Result {
	out := make(backend.Result, 0, len(res))
	for _, rs := range res {
		if rs == nil {
			out = append(out, rs)
			continue
		}
		clean := *rs
		clean.Columns = nil
		for _, c := range rs.Columns {
			if !rules.IsRegexColumn(c.Name) {
				clean.Columns = append(clean.Columns, c)
			}
		}
		clean.Data = make([]backend.Row, 0, len(rs.Data))
		for _, row := range rs.Data {
			r := make(backend.Row, len(row))
			for k, v := range row {
				if !rules.IsRegexColumn(k) {
					r[k] = v
				}
			}
			clean.Data = append(clean.Data, r)
		}
		out = append(out, &clean)
	}
	return out
}
