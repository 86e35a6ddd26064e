// Package result turns the JSON text printed by "sqlite3 -json" into typed
// rows.
//
// Column order follows the key order of the first row object. Later rows
// are projected onto those columns: a missing key reads as null and an
// extra key is ignored and reported in QueryResult.Dropped.
//
// Example usage:
//
//	res, err := result.ParseRows(`[{"id":1,"name":"ann"}]`)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Columns) // [id name]
//
//	cat, err := result.ParseTableNames(`[{"name":"users"},{"name":"orders"}]`)
//	fmt.Println(cat.Tables) // [users orders]
package result

import (
	"encoding/json"
	"strconv"
)

// Kind is the semantic type of a cell.
type Kind int

const (
	Null Kind = iota
	Text
	Number
	Bool
	// Opaque holds a nested array or object as raw JSON text.
	Opaque
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Text:
		return "text"
	case Number:
		return "number"
	case Bool:
		return "bool"
	case Opaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// Value is one cell.
type Value struct {
	Kind Kind

	// Raw is the text of a Text value, the literal of a Number (so large
	// integers keep every digit) or the JSON of an Opaque value.
	Raw string

	Number float64
	Bool   bool
}

// NullValue is the value of a missing or null cell.
var NullValue = Value{Kind: Null}

// IsNull reports whether the cell is null.
func (v Value) IsNull() bool {
	return v.Kind == Null
}

// String formats the value for display.
func (v Value) String() string {
	switch v.Kind {
	case Null:
		return "NULL"
	case Bool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Raw
	}
}

// MarshalJSON encodes the value as it appeared in the source.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case Null:
		return []byte("null"), nil
	case Text:
		return json.Marshal(v.Raw)
	case Bool:
		return []byte(strconv.FormatBool(v.Bool)), nil
	default:
		return []byte(v.Raw), nil
	}
}

// Row maps column name to value. Every row holds exactly the result's
// columns.
type Row map[string]Value

// QueryResult is a parsed result set.
type QueryResult struct {
	// Columns in first-row key order; empty when there are no rows.
	Columns []string `json:"columns"`

	Rows []Row `json:"rows"`

	// Dropped lists keys seen in later rows but not in the first, sorted.
	Dropped []string `json:"dropped,omitempty"`
}

// Values returns row i in column order.
func (r *QueryResult) Values(i int) []Value {
	row := r.Rows[i]
	out := make([]Value, len(r.Columns))
	for j, col := range r.Columns {
		out[j] = row[col]
	}
	return out
}

// TableCatalog is the list of tables in a database file.
type TableCatalog struct {
	// Tables in the order the remote tool returned them.
	Tables []string `json:"tables"`
}

// Option adjusts parsing.
type Option func(*options)

type options struct {
	allowEmpty bool
}

// AllowEmpty makes blank input parse as zero rows instead of failing with
// EmptyResponse.
func AllowEmpty() Option {
	return func(o *options) {
		o.allowEmpty = true
	}
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
