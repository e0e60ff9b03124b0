package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize_SplitsOnWhitespace(t *testing.T) {
	toks := tokenize("ls -la /tmp")
	require.Len(t, toks, 3)
	assert.Equal(t, "ls", toks[0].text)
	assert.Equal(t, "-la", toks[1].text)
	assert.Equal(t, "/tmp", toks[2].text)
}

func TestTokenize_QuotedTokensKeepSpacesAndAreMarkedQuoted(t *testing.T) {
	toks := tokenize(`echo "rm -rf /"`)
	require.Len(t, toks, 2)
	assert.Equal(t, "rm -rf /", toks[1].text)
	assert.True(t, toks[1].quoted)
}

func TestTokenize_SingleQuotesDoNotProcessEscapes(t *testing.T) {
	toks := tokenize(`echo 'a\nb'`)
	require.Len(t, toks, 2)
	assert.Equal(t, `a\nb`, toks[1].text)
}

func TestTokenize_SeparatorsBecomeOwnTokens(t *testing.T) {
	toks := tokenize("cd / && ls")
	var texts []string
	for _, tk := range toks {
		texts = append(texts, tk.text)
	}
	assert.Equal(t, []string{"cd", "/", "&", "&", "ls"}, texts)
}

func TestSplitStatements_SplitsOnAndAndPipe(t *testing.T) {
	toks := tokenize("cd / && ls | grep foo")
	stmts := splitStatements(toks)
	require.Len(t, stmts, 3)
	assert.Equal(t, "cd", stmts[0][0].text)
	assert.Equal(t, "ls", stmts[1][0].text)
	assert.Equal(t, "grep", stmts[2][0].text)
}

func TestSplitStatements_QuotedSeparatorIsNotASplitPoint(t *testing.T) {
	toks := tokenize(`echo "a;b"`)
	stmts := splitStatements(toks)
	require.Len(t, stmts, 1)
	require.Len(t, stmts[0], 2)
}

func TestSplitStatements_EmptyInput(t *testing.T) {
	assert.Empty(t, splitStatements(nil))
}
