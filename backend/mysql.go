package backend

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
)

// MySQLConfig configures a MySQLClient.
type MySQLConfig struct {
	DSN      string
	PoolSize int
	Timeout  time.Duration
}

// MySQLClient talks to the backend over its MySQL-protocol listener.
// Statement errors reported by the server become ResultSet.Error.
type MySQLClient struct {
	db      *sql.DB
	timeout time.Duration
}

func NewMySQLClient(config MySQLConfig) (*MySQLClient, error) {
	dsn, err := mysql.ParseDSN(config.DSN)
	if err != nil {
		return nil, &APIError{
			Code:    http.StatusBadRequest,
			Message: "invalid backend DSN",
			Err:     err,
		}
	}
	// The backend does not support server-side prepared statements
	dsn.InterpolateParams = true
	if config.Timeout > 0 {
		dsn.Timeout = config.Timeout
		dsn.ReadTimeout = config.Timeout
		dsn.WriteTimeout = config.Timeout
	}

	db, err := sql.Open("mysql", dsn.FormatDSN())
	if err != nil {
		return nil, &APIError{
			Code:    http.StatusBadGateway,
			Message: "failed to open backend connection pool",
			Err:     err,
		}
	}
	if config.PoolSize > 0 {
		db.SetMaxOpenConns(config.PoolSize)
		db.SetMaxIdleConns(config.PoolSize)
	}

	return &MySQLClient{db: db, timeout: config.Timeout}, nil
}

func (c *MySQLClient) WithPath(string) Client {
	return c
}

func (c *MySQLClient) Close() error {
	return c.db.Close()
}

func (c *MySQLClient) Send(ctx context.Context, query string) (res Result, err error) {
	start := time.Now()
	defer func() { observe(start, res, err) }()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	log.Debug().Str("query", query).Msg("Sending backend query")

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return statementError(err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, &APIError{Code: http.StatusBadGateway, Message: "failed to read columns", Err: err}
	}

	columns := make([]Column, len(types))
	for i, ct := range types {
		columns[i] = Column{Name: ct.Name(), Type: columnType(ct.DatabaseTypeName())}
	}

	data := []Row{}
	raw := make([]sql.RawBytes, len(types))
	dest := make([]interface{}, len(types))
	for i := range raw {
		dest[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, &APIError{Code: http.StatusBadGateway, Message: "failed to scan row", Err: err}
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			row[col.Name] = convertValue(raw[i], col.Type)
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return statementError(err)
	}

	return NewResult(columns, data), nil
}

// statementError turns a server-side error into a Result and anything
// else into an APIError.
func statementError(err error) (Result, error) {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return ErrorResult(mysqlErr.Message), nil
	}
	return nil, &APIError{
		Code:    http.StatusBadGateway,
		Message: "failed to execute query",
		Err:     err,
	}
}

// columnType maps a MySQL type name onto the backend's JSON type tags.
func columnType(dbType string) string {
	switch strings.ToUpper(dbType) {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT":
		return "long"
	case "BIGINT", "UNSIGNED BIGINT":
		return "long long"
	case "FLOAT", "DOUBLE", "DECIMAL":
		return "float"
	default:
		return "string"
	}
}

func convertValue(raw sql.RawBytes, typ string) interface{} {
	if raw == nil {
		return nil
	}
	s := string(raw)
	switch typ {
	case "long", "long long":
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return n
		}
	case "float":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}
