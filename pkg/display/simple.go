package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/0xmhha/metalite/pkg/result"
	"github.com/0xmhha/metalite/pkg/store"
)

// simpleFormatter formats output as tab-separated text.
type simpleFormatter struct {
	config Config
}

// FormatResult implements Formatter.FormatResult.
func (f *simpleFormatter) FormatResult(w io.Writer, res *result.QueryResult) error {
	if res == nil || len(res.Columns) == 0 {
		return nil
	}

	if !f.config.Compact {
		if _, err := fmt.Fprintln(w, strings.Join(res.Columns, "\t")); err != nil {
			return err
		}
	}

	for i := range res.Rows {
		values := res.Values(i)
		cells := make([]string, len(values))
		for j, v := range values {
			cells[j] = singleLine(v.String())
		}
		if _, err := fmt.Fprintln(w, strings.Join(cells, "\t")); err != nil {
			return err
		}
	}

	return nil
}

// FormatTables implements Formatter.FormatTables.
func (f *simpleFormatter) FormatTables(w io.Writer, cat *result.TableCatalog) error {
	for _, name := range cat.Tables {
		if _, err := fmt.Fprintln(w, name); err != nil {
			return err
		}
	}
	return nil
}

// FormatConnections implements Formatter.FormatConnections.
func (f *simpleFormatter) FormatConnections(w io.Writer, conns []*store.SavedConnection) error {
	for _, c := range conns {
		if _, err := fmt.Fprintf(w, "%s\t%s@%s\t%s\t%s\n",
			c.Name,
			c.User,
			c.Host,
			c.DBPath,
			c.ID); err != nil {
			return err
		}
	}

	return nil
}
