package display

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/0xmhha/metalite/pkg/result"
	"github.com/0xmhha/metalite/pkg/store"
)

// tableFormatter formats output as tables.
type tableFormatter struct {
	config Config
}

// FormatResult implements Formatter.FormatResult.
func (f *tableFormatter) FormatResult(w io.Writer, res *result.QueryResult) error {
	if res == nil || len(res.Columns) == 0 {
		_, err := fmt.Fprintln(w, rowCount(0))
		return err
	}

	rows := make([][]string, len(res.Rows))
	for i := range res.Rows {
		values := res.Values(i)
		cells := make([]string, len(values))
		for j, v := range values {
			cells[j] = f.cell(v.String())
		}
		rows[i] = cells
	}

	header := make([]string, len(res.Columns))
	for i, col := range res.Columns {
		header[i] = f.cell(col)
	}

	if err := f.writeTable(w, header, rows); err != nil {
		return err
	}

	if _, err := fmt.Fprintln(w, rowCount(len(res.Rows))); err != nil {
		return err
	}

	if len(res.Dropped) > 0 {
		_, err := fmt.Fprintf(w, "note: ignored keys missing from the first row: %s\n",
			strings.Join(res.Dropped, ", "))
		return err
	}

	return nil
}

// FormatTables implements Formatter.FormatTables.
func (f *tableFormatter) FormatTables(w io.Writer, cat *result.TableCatalog) error {
	if err := writeHeader(w, "Tables", f.config.Compact); err != nil {
		return err
	}

	rows := make([][]string, len(cat.Tables))
	for i, name := range cat.Tables {
		rows[i] = []string{fmt.Sprintf("%d", i+1), f.cell(name)}
	}

	return f.writeTable(w, []string{"#", "Name"}, rows)
}

// FormatConnections implements Formatter.FormatConnections.
func (f *tableFormatter) FormatConnections(w io.Writer, conns []*store.SavedConnection) error {
	if err := writeHeader(w, "Saved Connections", f.config.Compact); err != nil {
		return err
	}

	rows := make([][]string, len(conns))
	for i, c := range conns {
		rows[i] = []string{
			f.cell(c.Name),
			f.cell(c.User + "@" + c.Host),
			f.cell(c.DBPath),
			f.cell(c.KeyPath),
			c.ID,
		}
	}

	return f.writeTable(w, []string{"Name", "Target", "Database", "Key", "ID"}, rows)
}

func (f *tableFormatter) cell(s string) string {
	return truncate(singleLine(s), f.config.MaxCellWidth)
}

// writeTable writes a formatted table.
func (f *tableFormatter) writeTable(w io.Writer, header []string, rows [][]string) error {
	if len(rows) == 0 && len(header) == 0 {
		_, err := fmt.Fprintln(w, "No data")
		return err
	}

	// Calculate column widths.
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = utf8.RuneCountInString(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if n := utf8.RuneCountInString(cell); i < len(widths) && n > widths[i] {
				widths[i] = n
			}
		}
	}

	// Write header.
	if err := f.writeRow(w, header, widths); err != nil {
		return err
	}

	// Write separator.
	if !f.config.Compact {
		separator := make([]string, len(header))
		for i, width := range widths {
			separator[i] = strings.Repeat("-", width)
		}
		if err := f.writeRow(w, separator, widths); err != nil {
			return err
		}
	}

	// Write rows.
	for _, row := range rows {
		if err := f.writeRow(w, row, widths); err != nil {
			return err
		}
	}

	if len(rows) == 0 {
		if _, err := fmt.Fprintln(w, "No data"); err != nil {
			return err
		}
	}

	// Add spacing.
	if !f.config.Compact {
		_, err := fmt.Fprintln(w)
		return err
	}

	return nil
}

// writeRow writes a single table row. The last cell is not padded.
func (f *tableFormatter) writeRow(w io.Writer, cells []string, widths []int) error {
	gap := "  "
	if f.config.Compact {
		gap = " "
	}

	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteString(gap)
		}
		if i == len(cells)-1 {
			b.WriteString(cell)
			continue
		}
		fmt.Fprintf(&b, "%-*s", widths[i], cell)
	}

	_, err := fmt.Fprintln(w, b.String())
	return err
}
