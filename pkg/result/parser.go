package result

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// ParseRows interprets a JSON array of row objects.
//
// Blank input fails with EmptyResponse unless AllowEmpty is given. Anything
// other than an array of objects fails with Malformed.
func ParseRows(raw string, opts ...Option) (*QueryResult, error) {
	o := applyOptions(opts)

	res := &QueryResult{Columns: []string{}, Rows: []Row{}}

	doc, err := parseArray(raw, o)
	if err != nil {
		return nil, err
	}
	if !doc.Exists() {
		return res, nil
	}

	known := make(map[string]bool)
	dropped := make(map[string]bool)

	index := 0
	doc.ForEach(func(_, elem gjson.Result) bool {
		if !elem.IsObject() {
			err = malformed(raw, fmt.Sprintf("row %d is not an object", index))
			return false
		}

		row := make(Row, len(res.Columns))
		elem.ForEach(func(key, value gjson.Result) bool {
			name := key.String()

			if index == 0 && !known[name] {
				known[name] = true
				res.Columns = append(res.Columns, name)
			}

			if known[name] {
				// Duplicate keys: the last one wins.
				row[name] = convert(value)
			} else {
				dropped[name] = true
			}
			return true
		})

		for _, col := range res.Columns {
			if _, ok := row[col]; !ok {
				row[col] = NullValue
			}
		}

		res.Rows = append(res.Rows, row)
		index++
		return true
	})
	if err != nil {
		return nil, err
	}

	if len(dropped) > 0 {
		res.Dropped = make([]string, 0, len(dropped))
		for name := range dropped {
			res.Dropped = append(res.Dropped, name)
		}
		sort.Strings(res.Dropped)
	}

	return res, nil
}

// ParseTableNames extracts the "name" field of each row object, in order.
func ParseTableNames(raw string, opts ...Option) (*TableCatalog, error) {
	o := applyOptions(opts)

	cat := &TableCatalog{Tables: []string{}}

	doc, err := parseArray(raw, o)
	if err != nil {
		return nil, err
	}
	if !doc.Exists() {
		return cat, nil
	}

	index := 0
	doc.ForEach(func(_, elem gjson.Result) bool {
		if !elem.IsObject() {
			err = malformed(raw, fmt.Sprintf("row %d is not an object", index))
			return false
		}

		name := elem.Get(`name`)
		if name.Type != gjson.String {
			err = malformed(raw, fmt.Sprintf("row %d has no text name", index))
			return false
		}

		cat.Tables = append(cat.Tables, name.Str)
		index++
		return true
	})
	if err != nil {
		return nil, err
	}

	return cat, nil
}

// parseArray validates raw as a JSON array. A zero Result with a nil error
// means blank input that the caller accepts as empty.
func parseArray(raw string, o options) (gjson.Result, error) {
	if strings.TrimSpace(raw) == "" {
		if o.allowEmpty {
			return gjson.Result{}, nil
		}
		return gjson.Result{}, &ParseError{Kind: EmptyResponse, Raw: raw}
	}

	if !gjson.Valid(raw) {
		return gjson.Result{}, malformed(raw, "invalid JSON")
	}

	doc := gjson.Parse(raw)
	if !doc.IsArray() {
		return gjson.Result{}, malformed(raw, "top level is not an array")
	}

	return doc, nil
}

func convert(v gjson.Result) Value {
	switch v.Type {
	case gjson.String:
		return Value{Kind: Text, Raw: v.Str}
	case gjson.Number:
		return Value{Kind: Number, Raw: v.Raw, Number: v.Num}
	case gjson.True:
		return Value{Kind: Bool, Raw: v.Raw, Bool: true}
	case gjson.False:
		return Value{Kind: Bool, Raw: v.Raw, Bool: false}
	case gjson.JSON:
		return Value{Kind: Opaque, Raw: v.Raw}
	default:
		return NullValue
	}
}
