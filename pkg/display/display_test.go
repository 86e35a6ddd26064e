package display

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/0xmhha/metalite/pkg/result"
	"github.com/0xmhha/metalite/pkg/store"
)

func mustParse(t *testing.T, raw string) *result.QueryResult {
	t.Helper()

	res, err := result.ParseRows(raw, result.AllowEmpty())
	if err != nil {
		t.Fatalf("ParseRows() error = %v", err)
	}
	return res
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config Config
		want   string // Type name
	}{
		{
			name:   "default format (table)",
			config: Config{},
			want:   "*display.tableFormatter",
		},
		{
			name:   "table format",
			config: Config{Format: FormatTable},
			want:   "*display.tableFormatter",
		},
		{
			name:   "json format",
			config: Config{Format: FormatJSON},
			want:   "*display.jsonFormatter",
		},
		{
			name:   "simple format",
			config: Config{Format: FormatSimple},
			want:   "*display.simpleFormatter",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			formatter := New(tt.config)
			if formatter == nil {
				t.Fatal("New() returned nil")
			}

			got := fmt.Sprintf("%T", formatter)
			if got != tt.want {
				t.Errorf("New() type = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{" simple ", FormatSimple, false},
		{"", FormatTable, false},
		{"csv", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTableFormatter_FormatResult(t *testing.T) {
	t.Parallel()

	res := mustParse(t, `[{"id":1,"name":"alice"},{"id":22,"name":null}]`)

	var buf bytes.Buffer
	if err := New(Config{Format: FormatTable}).FormatResult(&buf, res); err != nil {
		t.Fatalf("FormatResult() error = %v", err)
	}

	want := "id  name\n" +
		"--  -----\n" +
		"1   alice\n" +
		"22  NULL\n" +
		"\n" +
		"(2 rows)\n"
	if got := buf.String(); got != want {
		t.Errorf("FormatResult() =\n%q\nwant\n%q", got, want)
	}
}

func TestTableFormatter_FormatResultDropped(t *testing.T) {
	t.Parallel()

	res := mustParse(t, `[{"a":1},{"a":2,"b":3}]`)

	var buf bytes.Buffer
	if err := New(Config{Format: FormatTable}).FormatResult(&buf, res); err != nil {
		t.Fatalf("FormatResult() error = %v", err)
	}

	if !strings.Contains(buf.String(), "ignored keys missing from the first row: b") {
		t.Errorf("FormatResult() missing dropped note:\n%s", buf.String())
	}
}

func TestTableFormatter_Empty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := New(Config{}).FormatResult(&buf, mustParse(t, "")); err != nil {
		t.Fatalf("FormatResult() error = %v", err)
	}
	if got := buf.String(); got != "(0 rows)\n" {
		t.Errorf("FormatResult() = %q, want %q", got, "(0 rows)\n")
	}

	buf.Reset()
	if err := New(Config{}).FormatTables(&buf, &result.TableCatalog{}); err != nil {
		t.Fatalf("FormatTables() error = %v", err)
	}
	if !strings.Contains(buf.String(), "No data") {
		t.Errorf("FormatTables() = %q, want No data", buf.String())
	}
}

func TestTableFormatter_Truncate(t *testing.T) {
	t.Parallel()

	res := mustParse(t, `[{"body":"line one\nline two is long"}]`)

	var buf bytes.Buffer
	if err := New(Config{MaxCellWidth: 10, Compact: true}).FormatResult(&buf, res); err != nil {
		t.Fatalf("FormatResult() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if lines[1] != "line on..." {
		t.Errorf("cell = %q, want %q", lines[1], "line on...")
	}
}

func TestTableFormatter_Unicode(t *testing.T) {
	t.Parallel()

	res := mustParse(t, `[{"name":"Zoë","n":1},{"name":"ab","n":2}]`)

	var buf bytes.Buffer
	if err := New(Config{Compact: true}).FormatResult(&buf, res); err != nil {
		t.Fatalf("FormatResult() error = %v", err)
	}

	lines := strings.Split(buf.String(), "\n")
	if lines[1] != "Zoë  1" || lines[2] != "ab   2" {
		t.Errorf("misaligned output:\n%s", buf.String())
	}
}

func TestTableFormatter_FormatTables(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cat := &result.TableCatalog{Tables: []string{"users", "orders"}}
	if err := New(Config{Compact: true}).FormatTables(&buf, cat); err != nil {
		t.Fatalf("FormatTables() error = %v", err)
	}

	want := "Tables\n# Name\n1 users\n2 orders\n"
	if got := buf.String(); got != want {
		t.Errorf("FormatTables() = %q, want %q", got, want)
	}
}

func TestTableFormatter_FormatConnections(t *testing.T) {
	t.Parallel()

	conns := []*store.SavedConnection{
		{ID: "id-1", Name: "root@127.0.0.1", Host: "127.0.0.1", User: "root", KeyPath: "~/.ssh/id_rsa", DBPath: "/var/db.sqlite"},
	}

	var buf bytes.Buffer
	if err := New(Config{}).FormatConnections(&buf, conns); err != nil {
		t.Fatalf("FormatConnections() error = %v", err)
	}

	output := buf.String()
	for _, want := range []string{"Saved Connections", "root@127.0.0.1", "/var/db.sqlite", "id-1"} {
		if !strings.Contains(output, want) {
			t.Errorf("FormatConnections() missing %q:\n%s", want, output)
		}
	}
}

func TestJSONFormatter_FormatResult(t *testing.T) {
	t.Parallel()

	raw := `[{"z":1,"a":"x","big":12345678901234567890,"tags":[1,2]}]`
	res := mustParse(t, raw)

	var buf bytes.Buffer
	if err := New(Config{Format: FormatJSON, Compact: true}).FormatResult(&buf, res); err != nil {
		t.Fatalf("FormatResult() error = %v", err)
	}

	if got := strings.TrimSpace(buf.String()); got != raw {
		t.Errorf("FormatResult() = %s, want %s", got, raw)
	}

	buf.Reset()
	if err := New(Config{Format: FormatJSON}).FormatResult(&buf, res); err != nil {
		t.Fatalf("FormatResult() error = %v", err)
	}
	if !json.Valid(buf.Bytes()) {
		t.Errorf("indented output is not valid JSON: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "\n  {") {
		t.Errorf("expected indented output, got %s", buf.String())
	}
}

func TestJSONFormatter_Empty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	f := New(Config{Format: FormatJSON, Compact: true})

	if err := f.FormatResult(&buf, mustParse(t, "")); err != nil {
		t.Fatalf("FormatResult() error = %v", err)
	}
	if err := f.FormatConnections(&buf, nil); err != nil {
		t.Fatalf("FormatConnections() error = %v", err)
	}

	if got := buf.String(); got != "[]\n[]\n" {
		t.Errorf("output = %q, want %q", got, "[]\n[]\n")
	}
}

func TestJSONFormatter_FormatConnections(t *testing.T) {
	t.Parallel()

	conns := []*store.SavedConnection{{ID: "1", Name: "n", Host: "h", User: "u", KeyPath: "/k", DBPath: "/d"}}

	var buf bytes.Buffer
	if err := New(Config{Format: FormatJSON}).FormatConnections(&buf, conns); err != nil {
		t.Fatalf("FormatConnections() error = %v", err)
	}

	var decoded []store.SavedConnection
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not a connection list: %v", err)
	}
	if len(decoded) != 1 || decoded[0].KeyPath != "/k" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestSimpleFormatter(t *testing.T) {
	t.Parallel()

	res := mustParse(t, `[{"a":1,"b":"x y"},{"a":2,"b":null}]`)

	var buf bytes.Buffer
	f := New(Config{Format: FormatSimple})
	if err := f.FormatResult(&buf, res); err != nil {
		t.Fatalf("FormatResult() error = %v", err)
	}

	want := "a\tb\n1\tx y\n2\tNULL\n"
	if got := buf.String(); got != want {
		t.Errorf("FormatResult() = %q, want %q", got, want)
	}

	buf.Reset()
	if err := f.FormatTables(&buf, &result.TableCatalog{Tables: []string{"users", "orders"}}); err != nil {
		t.Fatalf("FormatTables() error = %v", err)
	}
	if got := buf.String(); got != "users\norders\n" {
		t.Errorf("FormatTables() = %q", got)
	}

	buf.Reset()
	conns := []*store.SavedConnection{{ID: "id", Name: "prod", Host: "db", User: "app", DBPath: "/d"}}
	if err := f.FormatConnections(&buf, conns); err != nil {
		t.Fatalf("FormatConnections() error = %v", err)
	}
	if got := buf.String(); got != "prod\tapp@db\t/d\tid\n" {
		t.Errorf("FormatConnections() = %q", got)
	}
}

func TestSimpleFormatter_CompactOmitsHeader(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := New(Config{Format: FormatSimple, Compact: true}).FormatResult(&buf, mustParse(t, `[{"a":1}]`)); err != nil {
		t.Fatalf("FormatResult() error = %v", err)
	}
	if got := buf.String(); got != "1\n" {
		t.Errorf("FormatResult() = %q, want %q", got, "1\n")
	}
}

func TestFormatNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input int
		want  string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
	}

	for _, tt := range tests {
		if got := formatNumber(tt.input); got != tt.want {
			t.Errorf("formatNumber(%d) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestRowCount(t *testing.T) {
	t.Parallel()

	if got := rowCount(1); got != "(1 row)" {
		t.Errorf("rowCount(1) = %q", got)
	}
	if got := rowCount(1500); got != "(1,500 rows)" {
		t.Errorf("rowCount(1500) = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 0, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 8, "hello..."},
		{"héllo wörld", 8, "héllo..."},
		{"abcdef", 2, "ab"},
	}

	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
