package localexec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShellQuote_PlainValue(t *testing.T) {
	assert.Equal(t, "'hello'", ShellQuote("hello"))
}

func TestShellQuote_EscapesEmbeddedSingleQuote(t *testing.T) {
	assert.Equal(t, `'it'\''s'`, ShellQuote("it's"))
}

func TestShellQuote_EmptyString(t *testing.T) {
	assert.Equal(t, "''", ShellQuote(""))
}
