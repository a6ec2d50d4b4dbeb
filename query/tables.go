package query

// Information-schema tables the engine answers itself.
const (
	TableFiles            = "information_schema.files"
	TableTables           = "information_schema.tables"
	TableTriggers         = "information_schema.triggers"
	TableColumns          = "information_schema.columns"
	TableColumnStatistics = "information_schema.column_statistics"
	TableSchemata         = "information_schema.schemata"
)

// HandledTables lists every table a statement may target to be claimed
// without a database-alias reference or a recoverable error.
var HandledTables = []string{
	TableFiles,
	TableTables,
	TableTriggers,
	TableColumns,
	TableColumnStatistics,
	TableSchemata,
}

// Tables with no backend equivalent; they always answer with zero rows.
var emptyTables = map[string]struct{}{
	TableFiles:            {},
	TableTriggers:         {},
	TableColumnStatistics: {},
	TableSchemata:         {},
}

// IsHandledTable reports whether table (normalized) is one of HandledTables.
func IsHandledTable(table string) bool {
	for _, t := range HandledTables {
		if t == table {
			return true
		}
	}
	return false
}

// IsAlwaysEmpty reports whether table is answered with an empty result.
func IsAlwaysEmpty(table string) bool {
	_, ok := emptyTables[table]
	return ok
}
