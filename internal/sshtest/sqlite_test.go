package sshtest

import (
	"testing"

	"github.com/alessio/shellescape"
	"github.com/stretchr/testify/assert"
)

func TestSplitCommandReversesQuoting(t *testing.T) {
	tests := [][]string{
		{"sqlite3", "-json", "/var/db.sqlite", "SELECT 1;"},
		{"sqlite3", "/data/my db.sqlite", "SELECT 'it''s';"},
		{"sqlite3", "/db", "SELECT 1;\n.shell touch /tmp/x\n"},
		{"sqlite3", "/db", "SELECT '$(id)', `id`, \"q\", \\;"},
		{"sqlite3", "/db", ""},
	}

	for _, args := range tests {
		line := shellescape.QuoteCommand(args)
		assert.Equal(t, args, SplitCommand(line), line)
	}
}

func TestSplitCommandPlainWords(t *testing.T) {
	assert.Equal(t, []string{"a", "b c", "d"}, SplitCommand(`a "b c"  d`))
	assert.Equal(t, []string{"a b"}, SplitCommand(`a\ b`))
	assert.Nil(t, SplitCommand("   "))
}
