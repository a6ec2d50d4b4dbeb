package protocol

import (
	"regexp"
	"strings"

	"github.com/infobridge/infobridge/query"
	"vitess.io/vitess/go/vt/sqlparser"
)

var sessionParser *sqlparser.Parser

var (
	setStatementRe = regexp.MustCompile(`(?is)^\s*SET\s+`)
	trailingLimit  = regexp.MustCompile(`(?i)\s+LIMIT\s+\d+\s*;?\s*$`)

	// Session functions answered locally. VERSION() goes to the backend.
	sessionFunctions = map[string]bool{
		"database()":      true,
		"schema()":        true,
		"connection_id()": true,
		"user()":          true,
		"current_user()":  true,
		"session_user()":  true,
		"system_user()":   true,
	}
)

func init() {
	var err error
	sessionParser, err = sqlparser.New(sqlparser.Options{})
	if err != nil {
		panic("failed to initialize Vitess parser: " + err.Error())
	}
}

// SessionCommandKind classifies statements that only touch connection state.
type SessionCommandKind int

const (
	SessionCommandNone SessionCommandKind = iota
	// SessionCommandSet is any SET statement
	SessionCommandSet
	// SessionCommandUse switches the session database
	SessionCommandUse
	// SessionCommandSystemVariables selects only @@variables and session functions
	SessionCommandSystemVariables
)

// SessionCommand is a statement the server answers from session state.
type SessionCommand struct {
	Kind     SessionCommandKind
	Database string
	Fields   []query.Field
}

// ParseSessionCommand recognizes SET, USE and system variable selects.
// Anything else yields SessionCommandNone.
func ParseSessionCommand(sql string) SessionCommand {
	stmt, err := sessionParser.Parse(sql)
	if err != nil {
		// The parser does not know every SET variant clients send
		if setStatementRe.MatchString(sql) {
			return SessionCommand{Kind: SessionCommandSet}
		}
		return SessionCommand{}
	}

	switch parsed := stmt.(type) {
	case *sqlparser.Set:
		return SessionCommand{Kind: SessionCommandSet}
	case *sqlparser.Use:
		return SessionCommand{Kind: SessionCommandUse, Database: parsed.DBName.String()}
	case *sqlparser.Select:
		if !selectsFromDual(parsed) {
			return SessionCommand{}
		}
		if fields, ok := systemVariableFields(sql); ok {
			return SessionCommand{Kind: SessionCommandSystemVariables, Fields: fields}
		}
	}
	return SessionCommand{}
}

func selectsFromDual(sel *sqlparser.Select) bool {
	if len(sel.From) == 0 {
		return true
	}
	if len(sel.From) != 1 {
		return false
	}
	aliased, ok := sel.From[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return false
	}
	tableName, ok := aliased.Expr.(sqlparser.TableName)
	if !ok {
		return false
	}
	return strings.EqualFold(tableName.Name.String(), "dual") && !tableName.Qualifier.NotEmpty()
}

// systemVariableFields returns the projection of sql when every field is a
// system variable or a session function.
func systemVariableFields(sql string) ([]query.Field, bool) {
	text := strings.TrimSpace(trailingLimit.ReplaceAllString(sql, ""))
	text = strings.TrimSpace(strings.TrimSuffix(text, ";"))

	sel := query.IndexKeyword(text, "SELECT")
	if sel < 0 {
		return nil, false
	}
	projection := text[sel+len("SELECT"):]
	if from := query.IndexKeyword(projection, "FROM"); from >= 0 {
		projection = projection[:from]
	}

	fields := query.SplitFields(projection)
	if len(fields) == 0 {
		return nil, false
	}
	for _, f := range fields {
		name := strings.ToLower(systemVariableName(f))
		if !strings.HasPrefix(strings.TrimSpace(f.Expr), "@@") && !sessionFunctions[name] {
			return nil, false
		}
	}
	return fields, true
}
