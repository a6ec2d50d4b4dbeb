package handlers

import "strings"

// SourceKind says where a shaped column takes its value from.
type SourceKind int

const (
	// SourceField reads the named key off the backend row
	SourceField SourceKind = iota
	// SourceStatic is a constant
	SourceStatic
	// SourceTable is the name of the table being described
	SourceTable
)

// Source resolves one output column.
type Source struct {
	Kind  SourceKind
	Value string
}

// Information-schema column names shaped by the columns and tables strategies.
const (
	ColumnTableSchema          = "table_schema"
	ColumnTableName            = "table_name"
	ColumnColumnName           = "column_name"
	ColumnDataType             = "data_type"
	ColumnExtra                = "extra"
	ColumnGenerationExpression = "generation_expression"
	ColumnTableType            = "table_type"
	ColumnEngine               = "engine"
)

// FieldMapEntry binds an output column to its Source.
type FieldMapEntry struct {
	Column string
	Source Source
}

// FieldMap is an ordered, read-only mapping from output column to Source.
type FieldMap struct {
	columns []string
	sources map[string]Source
}

func NewFieldMap(entries ...FieldMapEntry) FieldMap {
	m := FieldMap{sources: make(map[string]Source, len(entries))}
	for _, e := range entries {
		key := strings.ToLower(e.Column)
		if _, dup := m.sources[key]; !dup {
			m.columns = append(m.columns, e.Column)
		}
		m.sources[key] = e.Source
	}
	return m
}

// Resolve returns the Source for column. Unmapped columns read the backend
// field of the same name.
func (m FieldMap) Resolve(column string) Source {
	if src, ok := m.sources[strings.ToLower(column)]; ok {
		return src
	}
	return Source{Kind: SourceField, Value: column}
}

// Columns lists the mapped columns in declaration order.
func (m FieldMap) Columns() []string {
	out := make([]string, len(m.columns))
	copy(out, m.columns)
	return out
}

// columnsFieldMap shapes DESC rows into information_schema.columns rows.
func columnsFieldMap(alias string) FieldMap {
	return NewFieldMap(
		FieldMapEntry{ColumnTableSchema, Source{Kind: SourceStatic, Value: alias}},
		FieldMapEntry{ColumnTableName, Source{Kind: SourceTable}},
		FieldMapEntry{ColumnColumnName, Source{Kind: SourceField, Value: "Field"}},
		FieldMapEntry{ColumnDataType, Source{Kind: SourceField, Value: "Type"}},
		FieldMapEntry{ColumnExtra, Source{Kind: SourceStatic, Value: ""}},
		FieldMapEntry{ColumnGenerationExpression, Source{Kind: SourceStatic, Value: ""}},
	)
}

// tablesFieldMap shapes per-table engine rows into information_schema.tables rows.
func tablesFieldMap(alias string) FieldMap {
	return NewFieldMap(
		FieldMapEntry{ColumnTableSchema, Source{Kind: SourceStatic, Value: alias}},
		FieldMapEntry{ColumnTableName, Source{Kind: SourceTable}},
		FieldMapEntry{ColumnTableType, Source{Kind: SourceStatic, Value: "BASE TABLE"}},
		FieldMapEntry{ColumnEngine, Source{Kind: SourceField, Value: "engine"}},
	)
}
