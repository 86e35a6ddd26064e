// Package display renders query results, table catalogs and saved
// connections for the terminal.
//
// It supports multiple output formats (table, JSON, simple text).
package display

import (
	"io"

	"github.com/0xmhha/metalite/pkg/result"
	"github.com/0xmhha/metalite/pkg/store"
)

// Format represents an output format.
type Format string

const (
	// FormatTable displays aligned columns with a header.
	FormatTable Format = "table"

	// FormatJSON displays JSON.
	FormatJSON Format = "json"

	// FormatSimple displays tab-separated text, one record per line.
	FormatSimple Format = "simple"
)

// Formatter renders metalite data.
type Formatter interface {
	// FormatResult renders a query result in column order.
	FormatResult(w io.Writer, res *result.QueryResult) error

	// FormatTables renders a table catalog.
	FormatTables(w io.Writer, cat *result.TableCatalog) error

	// FormatConnections renders saved connections.
	FormatConnections(w io.Writer, conns []*store.SavedConnection) error
}

// Config contains formatter configuration.
type Config struct {
	// Format specifies the output format.
	// Default: FormatTable.
	Format Format

	// Compact enables compact output (less whitespace).
	// Default: false.
	Compact bool

	// MaxCellWidth truncates table cells longer than this many runes.
	// Zero means no limit.
	MaxCellWidth int
}
