package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rtmc-lang/rtmc/internal/token"
)

func kinds(t []token.Token) []token.Kind {
	out := make([]token.Kind, len(t))
	for i, tok := range t {
		out[i] = tok.Kind
	}
	return out
}

func TestTokenizeKeywordsAndOperators(t *testing.T) {
	toks, err := Tokenize("int x = 1 + 2;", "t.rtmc")
	require.NoError(t, err)
	require.Equal(t, []token.Kind{
		token.KwInt, token.Ident, token.Assign, token.IntLiteral,
		token.Plus, token.IntLiteral, token.Semi, token.EOF,
	}, kinds(toks))
}

func TestTokenizeHexIntLiteral(t *testing.T) {
	toks, err := Tokenize("0x1F", "t.rtmc")
	require.NoError(t, err)
	require.Equal(t, token.IntLiteral, toks[0].Kind)
	v, err := ParseIntLexeme(toks[0].Lexeme)
	require.NoError(t, err)
	require.Equal(t, uint32(0x1F), v)
}

func TestTokenizeFloatLiteralRequiresFraction(t *testing.T) {
	toks, err := Tokenize("3.14", "t.rtmc")
	require.NoError(t, err)
	require.Equal(t, token.FloatLiteral, toks[0].Kind)
}

func TestTokenizeStringAndCharLiterals(t *testing.T) {
	toks, err := Tokenize(`"hi" 'a'`, "t.rtmc")
	require.NoError(t, err)
	require.Equal(t, token.StringLiteral, toks[0].Kind)
	require.Equal(t, token.CharLiteral, toks[1].Kind)
}

func TestTokenizeUnterminatedStringIsLexError(t *testing.T) {
	_, err := Tokenize(`"unterminated`, "t.rtmc")
	require.Error(t, err)
	_, ok := err.(*Error)
	require.True(t, ok)
}

func TestTokenizePositionsTrackLineAndColumn(t *testing.T) {
	toks, err := Tokenize("int\nx", "t.rtmc")
	require.NoError(t, err)
	require.Equal(t, 1, toks[0].Pos.Line)
	require.Equal(t, 2, toks[1].Pos.Line)
}
