package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Column is one result column. On the wire it is {"<name>":{"type":"<type>"}}.
type Column struct {
	Name string
	Type string
}

func (c Column) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]map[string]string{
		c.Name: {"type": c.Type},
	})
}

func (c *Column) UnmarshalJSON(data []byte) error {
	var raw map[string]struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("column must have exactly one key, got %d", len(raw))
	}
	for name, def := range raw {
		c.Name = name
		c.Type = def.Type
	}
	return nil
}

// Row maps column names to values.
type Row map[string]interface{}

// ResultSet is the reply to one statement. Error is set instead of
// Columns/Data when the backend rejected the statement.
type ResultSet struct {
	Columns []Column `json:"columns"`
	Data    []Row    `json:"data"`
	Total   int64    `json:"total"`
	Error   string   `json:"error"`
	Warning string   `json:"warning"`
}

// Result holds one ResultSet per statement sent.
type Result []*ResultSet

// ErrorMessage returns the first backend error in r, or "".
func (r Result) ErrorMessage() string {
	for _, rs := range r {
		if rs != nil && rs.Error != "" {
			return rs.Error
		}
	}
	return ""
}

// First returns the first result set, or an empty one.
func (r Result) First() *ResultSet {
	if len(r) == 0 || r[0] == nil {
		return &ResultSet{}
	}
	return r[0]
}

// Rows returns the rows of the first result set.
func (r Result) Rows() []Row {
	return r.First().Data
}

// ErrorResult builds the Result the backend sends for a rejected statement.
func ErrorResult(msg string) Result {
	return Result{{Error: msg}}
}

// NewResult builds a single-set Result with Total set to the row count.
func NewResult(columns []Column, data []Row) Result {
	if data == nil {
		data = []Row{}
	}
	return Result{{
		Columns: columns,
		Data:    data,
		Total:   int64(len(data)),
	}}
}

// DecodeResult parses a backend reply. The backend answers with an array
// of result sets, or with a single object when the statement failed.
func DecodeResult(body []byte) (Result, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("empty backend response")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	if body[0] == '[' {
		var res Result
		if err := dec.Decode(&res); err != nil {
			return nil, fmt.Errorf("failed to decode backend response: %w", err)
		}
		return res, nil
	}

	var rs ResultSet
	if err := dec.Decode(&rs); err != nil {
		return nil, fmt.Errorf("failed to decode backend response: %w", err)
	}
	return Result{&rs}, nil
}
