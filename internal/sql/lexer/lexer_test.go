package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAll_KeywordsIdentsLiterals(t *testing.T) {
	toks, err := All(`SELECT id, name FROM users WHERE age >= 18 AND name != "bob"`)
	require.NoError(t, err)

	require.Equal(t, Token{Kind: Keyword, Text: "SELECT"}, toks[0])
	require.Equal(t, Token{Kind: Ident, Text: "id"}, toks[1])
	require.Equal(t, Token{Kind: Punct, Text: ","}, toks[2])
	require.Equal(t, Token{Kind: Ident, Text: "name"}, toks[3])
	require.Equal(t, Token{Kind: Keyword, Text: "FROM"}, toks[4])
	require.Equal(t, Token{Kind: Ident, Text: "users"}, toks[5])
	require.Equal(t, Token{Kind: Keyword, Text: "WHERE"}, toks[6])
	require.Equal(t, Token{Kind: Ident, Text: "age"}, toks[7])
	require.Equal(t, Token{Kind: Punct, Text: ">="}, toks[8])
	require.Equal(t, Token{Kind: Number, Text: "18"}, toks[9])
	require.Equal(t, Token{Kind: Keyword, Text: "AND"}, toks[10])
	require.Equal(t, Token{Kind: Ident, Text: "name"}, toks[11])
	require.Equal(t, Token{Kind: Punct, Text: "!="}, toks[12])
	require.Equal(t, Token{Kind: String, Text: "bob"}, toks[13])
}

func TestAll_NegativeAndFloatNumbers(t *testing.T) {
	toks, err := All(`-3.5 42`)
	require.NoError(t, err)
	require.Equal(t, Token{Kind: Number, Text: "-3.5"}, toks[0])
	require.Equal(t, Token{Kind: Number, Text: "42"}, toks[1])
}

func TestAll_UnterminatedString(t *testing.T) {
	_, err := All(`SELECT * FROM t WHERE v = "oops`)
	require.Error(t, err)
}

func TestAll_CaseInsensitiveKeywords(t *testing.T) {
	toks, err := All(`select * from t`)
	require.NoError(t, err)
	require.Equal(t, Token{Kind: Keyword, Text: "SELECT"}, toks[0])
	require.Equal(t, Token{Kind: Keyword, Text: "FROM"}, toks[2])
}
