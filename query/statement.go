package query

// Request is one inbound statement together with the error text a previous
// attempt received from the backend (empty when there was none) and the
// backend routing path the reply should be fetched from.
type Request struct {
	Payload string `json:"payload"`
	Error   string `json:"error"`
	Path    string `json:"path"`
}

// Statement is the structured view of a classified SELECT.
// It is never modified after Parse returns it.
type Statement struct {
	// Original is the payload with newlines collapsed to spaces
	Original string
	// Table is lower-cased, backtick-free and has the database alias
	// prefix removed. Empty means a direct function call such as version().
	Table string
	// Fields in projection order
	Fields []Field
	// Predicates keyed by lower-cased column name, last occurrence wins
	Predicates map[string]Predicate
	// Prefixed reports whether the text references the database alias
	Prefixed bool

	Request Request
}

// Field is one projected expression.
type Field struct {
	// Expr is the projected text as written, alias included
	Expr string
	// Name is the output column name
	Name string
	// Key is the lower-cased, backtick-free expression without its alias
	Key string
}

// Predicate is a column comparison found after WHERE.
type Predicate struct {
	Column   string
	Operator string
	// Value is the literal without surrounding quotes. For IN lists it is
	// the raw text between the parentheses.
	Value  string
	Quoted bool
}

// Predicate returns the predicate for column, matched case-insensitively.
func (s *Statement) Predicate(column string) (Predicate, bool) {
	p, ok := s.Predicates[lower(column)]
	return p, ok
}

// HasTable reports whether the statement targets a table rather than a
// bare function call.
func (s *Statement) HasTable() bool {
	return s.Table != ""
}
