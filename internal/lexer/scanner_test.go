package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeSymbolsAndKeywords(t *testing.T) {
	toks, err := New("let x = 1 + 2 >= 3 && true").Tokenize()
	require.NoError(t, err)
	var types []TokenType
	for _, tok := range toks {
		types = append(types, tok.Type)
	}
	assert.Equal(t, []TokenType{
		TokLet, TokIdent, TokAssign, TokInt, TokPlus, TokInt,
		TokGe, TokInt, TokAnd, TokTrue, TokEOF,
	}, types)
}

func TestLiteralSuffix(t *testing.T) {
	toks, err := New("3d").Tokenize()
	require.NoError(t, err)
	require.Len(t, toks, 2)
	assert.Equal(t, TokInt, toks[0].Type)
	assert.Equal(t, "3", toks[0].Lit)
	assert.Equal(t, "d", toks[0].Suffix)
}

func TestCommentsAreSkipped(t *testing.T) {
	toks, err := New("let x = 1 # trailing comment\nlet y = 2").Tokenize()
	require.NoError(t, err)
	var lets int
	for _, tok := range toks {
		if tok.Type == TokLet {
			lets++
		}
	}
	assert.Equal(t, 2, lets)
}

func TestStringEscapes(t *testing.T) {
	toks, err := New(`"a\nb\tc\"d"`).Tokenize()
	require.NoError(t, err)
	require.Len(t, toks, 2)
	assert.Equal(t, "a\nb\tc\"d", toks[0].Lit)
}

func TestUnterminatedStringIsScanError(t *testing.T) {
	_, err := New(`"unterminated`).Tokenize()
	require.Error(t, err)
	var se *ScanError
	require.ErrorAs(t, err, &se)
}

func TestFloatLiteral(t *testing.T) {
	toks, err := New("3.5").Tokenize()
	require.NoError(t, err)
	require.Len(t, toks, 2)
	assert.Equal(t, TokFloat, toks[0].Type)
	assert.Equal(t, "3.5", toks[0].Lit)
}
