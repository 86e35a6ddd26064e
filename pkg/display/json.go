package display

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/0xmhha/metalite/pkg/result"
	"github.com/0xmhha/metalite/pkg/store"
)

// jsonFormatter formats output as JSON.
type jsonFormatter struct {
	config Config
}

// FormatResult implements Formatter.FormatResult.
//
// Rows are written as an array of objects whose keys follow column order,
// the same shape the remote tool printed.
func (f *jsonFormatter) FormatResult(w io.Writer, res *result.QueryResult) error {
	var buf bytes.Buffer
	buf.WriteByte('[')

	if res != nil {
		for i := range res.Rows {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteByte('{')
			for j, v := range res.Values(i) {
				if j > 0 {
					buf.WriteByte(',')
				}
				key, err := json.Marshal(res.Columns[j])
				if err != nil {
					return err
				}
				val, err := v.MarshalJSON()
				if err != nil {
					return err
				}
				buf.Write(key)
				buf.WriteByte(':')
				buf.Write(val)
			}
			buf.WriteByte('}')
		}
	}

	buf.WriteByte(']')

	return f.write(w, buf.Bytes())
}

// FormatTables implements Formatter.FormatTables.
func (f *jsonFormatter) FormatTables(w io.Writer, cat *result.TableCatalog) error {
	return f.encode(w, cat.Tables)
}

// FormatConnections implements Formatter.FormatConnections.
func (f *jsonFormatter) FormatConnections(w io.Writer, conns []*store.SavedConnection) error {
	if conns == nil {
		conns = []*store.SavedConnection{}
	}
	return f.encode(w, conns)
}

func (f *jsonFormatter) encode(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	if !f.config.Compact {
		encoder.SetIndent("", "  ")
	}

	return encoder.Encode(v)
}

func (f *jsonFormatter) write(w io.Writer, data []byte) error {
	if !f.config.Compact {
		var indented bytes.Buffer
		if err := json.Indent(&indented, data, "", "  "); err != nil {
			return err
		}
		data = indented.Bytes()
	}

	_, err := w.Write(append(data, '\n'))
	return err
}
