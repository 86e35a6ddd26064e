package result

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTableNamesScenario(t *testing.T) {
	cat, err := ParseTableNames(`[{"name":"users"},{"name":"orders"}]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "orders"}, cat.Tables)
}

func TestParseTableNames(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		opts     []Option
		want     []string
		wantKind ParseErrorKind
		wantErr  bool
	}{
		{name: "sqlite spacing", raw: "[{\"name\":\"a\"},\n{\"name\":\"b\"}]\n", want: []string{"a", "b"}},
		{name: "extra fields", raw: `[{"type":"table","name":"t"}]`, want: []string{"t"}},
		{name: "empty array", raw: `[]`, want: []string{}},
		{name: "blank", raw: "  \n", wantErr: true, wantKind: EmptyResponse},
		{name: "blank allowed", raw: "", opts: []Option{AllowEmpty()}, want: []string{}},
		{name: "missing name", raw: `[{"tbl":"x"}]`, wantErr: true, wantKind: Malformed},
		{name: "numeric name", raw: `[{"name":5}]`, wantErr: true, wantKind: Malformed},
		{name: "not array", raw: `{"name":"x"}`, wantErr: true, wantKind: Malformed},
		{name: "element not object", raw: `["users"]`, wantErr: true, wantKind: Malformed},
		{name: "broken", raw: `[{"name":"x"`, wantErr: true, wantKind: Malformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, err := ParseTableNames(tt.raw, tt.opts...)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsKind(err, tt.wantKind), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cat.Tables)
		})
	}
}

func TestParseRowsLeftInverse(t *testing.T) {
	columns := []string{"zeta", "alpha", "mid"}
	rows := [][]any{
		{int64(1), "ann", true},
		{int64(9007199254740993), "bob", false},
		{2.5, "", nil},
	}

	// Build the array by hand so key order is the column order.
	var b strings.Builder
	b.WriteString("[")
	for i, row := range rows {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("{")
		for j, col := range columns {
			if j > 0 {
				b.WriteString(",")
			}
			k, _ := json.Marshal(col)    //nolint:errcheck // plain string
			v, _ := json.Marshal(row[j]) //nolint:errcheck // plain value
			b.Write(k)
			b.WriteString(":")
			b.Write(v)
		}
		b.WriteString("}")
	}
	b.WriteString("]")

	res, err := ParseRows(b.String())
	require.NoError(t, err)
	assert.Equal(t, columns, res.Columns)
	require.Len(t, res.Rows, len(rows))
	assert.Empty(t, res.Dropped)

	for i, row := range rows {
		for j, col := range columns {
			got := res.Rows[i][col]
			switch want := row[j].(type) {
			case nil:
				assert.True(t, got.IsNull())
			case string:
				assert.Equal(t, Text, got.Kind)
				assert.Equal(t, want, got.Raw)
			case bool:
				assert.Equal(t, Bool, got.Kind)
				assert.Equal(t, want, got.Bool)
			case int64:
				assert.Equal(t, Number, got.Kind)
				n, convErr := json.Number(got.Raw).Int64()
				require.NoError(t, convErr)
				assert.Equal(t, want, n, "integer precision kept")
			case float64:
				assert.Equal(t, Number, got.Kind)
				assert.InDelta(t, want, got.Number, 1e-9)
			}
		}
	}
}

func TestParseRowsEmpty(t *testing.T) {
	_, err := ParseRows("")
	require.Error(t, err)
	assert.True(t, IsKind(err, EmptyResponse))

	_, err = ParseRows(" \t\n")
	assert.True(t, IsKind(err, EmptyResponse))

	res, err := ParseRows("", AllowEmpty())
	require.NoError(t, err)
	assert.Empty(t, res.Columns)
	assert.Empty(t, res.Rows)

	res, err = ParseRows("[]")
	require.NoError(t, err)
	assert.NotNil(t, res.Columns)
	assert.Empty(t, res.Rows)
}

func TestParseRowsMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"truncated", `[{"a":1}`},
		{"plain text", `Error: no such table: foo`},
		{"object", `{"a":1}`},
		{"scalar rows", `[1,2,3]`},
		{"mixed rows", `[{"a":1},2]`},
		{"two result sets", "[{\"a\":1}]\n[{\"b\":2}]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRows(tt.raw)
			require.Error(t, err)

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, Malformed, pe.Kind)
			assert.Equal(t, tt.raw, pe.Raw, "offending text carried verbatim")
			assert.NotEmpty(t, pe.Error())
		})
	}
}

func TestParseRowsColumnDrift(t *testing.T) {
	raw := `[
{"id":1,"name":"a"},
{"id":2},
{"id":3,"name":"c","extra":true,"another":1},
{"name":"d","id":4,"extra":false}
]`

	res, err := ParseRows(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name"}, res.Columns)
	assert.Equal(t, []string{"another", "extra"}, res.Dropped)
	require.Len(t, res.Rows, 4)

	for _, row := range res.Rows {
		assert.Len(t, row, 2, "every row has exactly the columns")
	}

	assert.True(t, res.Rows[1]["name"].IsNull(), "missing key reads as null")
	assert.Equal(t, "d", res.Rows[3]["name"].Raw)
	assert.Equal(t, "4", res.Rows[3]["id"].Raw)
}

func TestParseRowsDuplicateKeys(t *testing.T) {
	res, err := ParseRows(`[{"a":1,"a":2,"b":3}]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, res.Columns)
	assert.Equal(t, "2", res.Rows[0]["a"].Raw)
}

func TestParseRowsNestedValuesAreOpaque(t *testing.T) {
	res, err := ParseRows(`[{"tags":["x","y"],"meta":{"k":1}}]`)
	require.NoError(t, err)

	tags := res.Rows[0]["tags"]
	assert.Equal(t, Opaque, tags.Kind)
	assert.Equal(t, `["x","y"]`, tags.String())

	meta := res.Rows[0]["meta"]
	assert.Equal(t, Opaque, meta.Kind)
	assert.Equal(t, `{"k":1}`, meta.String())
}

func TestValueString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{NullValue, "NULL"},
		{Value{Kind: Text, Raw: "hi"}, "hi"},
		{Value{Kind: Number, Raw: "1e3", Number: 1000}, "1e3"},
		{Value{Kind: Bool, Bool: true}, "true"},
		{Value{Kind: Opaque, Raw: "[1]"}, "[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.v.Kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.String())
		})
	}
}

func TestValueMarshalJSON(t *testing.T) {
	res, err := ParseRows(`[{"n":12345678901234567890,"s":"q\"uote","b":false,"z":null,"o":{"a":[1]}}]`)
	require.NoError(t, err)

	data, err := json.Marshal(res.Values(0))
	require.NoError(t, err)
	assert.Equal(t, `[12345678901234567890,"q\"uote",false,null,{"a":[1]}]`, string(data))
}

func TestValuesColumnOrder(t *testing.T) {
	res, err := ParseRows(`[{"b":1,"a":2}]`)
	require.NoError(t, err)

	vals := res.Values(0)
	require.Len(t, vals, 2)
	assert.Equal(t, "1", vals[0].Raw)
	assert.Equal(t, "2", vals[1].Raw)
}

func TestParseErrorMessage(t *testing.T) {
	assert.Equal(t, "query returned no output", (&ParseError{Kind: EmptyResponse}).Error())

	long := strings.Repeat("x", 500)
	msg := malformed(long, "invalid JSON").Error()
	assert.Contains(t, msg, "invalid JSON")
	assert.Less(t, len(msg), 300)
}
