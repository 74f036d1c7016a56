package lexer

import (
	"testing"

	"github.com/deepnoodle-ai/hbs/internal/token"
	"github.com/stretchr/testify/require"
)

type expected struct {
	typ     token.Type
	literal string
}

func lexAll(t *testing.T, input string) []token.Token {
	t.Helper()
	tokens, err := New(input).Tokens()
	require.NoError(t, err)
	return tokens
}

func TestTokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []expected
	}{
		{"content", "hello", []expected{
			{token.CONTENT, "hello"},
			{token.EOF, ""},
		}},
		{"mustache", "a {{b}} c", []expected{
			{token.CONTENT, "a "},
			{token.OPEN, "{{"},
			{token.ID, "b"},
			{token.CLOSE, "}}"},
			{token.CONTENT, " c"},
			{token.EOF, ""},
		}},
		{"triple stash", "{{{x}}}", []expected{
			{token.OPEN_UNESCAPED, "{{{"},
			{token.ID, "x"},
			{token.CLOSE_UNESCAPED, "}}}"},
			{token.EOF, ""},
		}},
		{"ampersand", "{{&x}}", []expected{
			{token.OPEN, "{{&"},
			{token.ID, "x"},
			{token.CLOSE, "}}"},
			{token.EOF, ""},
		}},
		{"strip", "{{~foo~}}", []expected{
			{token.OPEN, "{{~"},
			{token.ID, "foo"},
			{token.CLOSE, "~}}"},
			{token.EOF, ""},
		}},
		{"block", "{{#if a}}x{{else}}y{{/if}}", []expected{
			{token.OPEN_BLOCK, "{{#"},
			{token.ID, "if"},
			{token.ID, "a"},
			{token.CLOSE, "}}"},
			{token.CONTENT, "x"},
			{token.INVERSE, "{{else}}"},
			{token.CONTENT, "y"},
			{token.OPEN_ENDBLOCK, "{{/"},
			{token.ID, "if"},
			{token.CLOSE, "}}"},
			{token.EOF, ""},
		}},
		{"caret inverse", "{{^}}", []expected{
			{token.INVERSE, "{{^}}"},
			{token.EOF, ""},
		}},
		{"else chain", "{{else if b}}", []expected{
			{token.OPEN_INVERSE_CHAIN, "{{else"},
			{token.ID, "if"},
			{token.ID, "b"},
			{token.CLOSE, "}}"},
			{token.EOF, ""},
		}},
		{"inverted section", "{{^a}}", []expected{
			{token.OPEN_INVERSE, "{{^"},
			{token.ID, "a"},
			{token.CLOSE, "}}"},
			{token.EOF, ""},
		}},
		{"arguments", `{{foo "s" 1 true a=b}}`, []expected{
			{token.OPEN, "{{"},
			{token.ID, "foo"},
			{token.STRING, "s"},
			{token.NUMBER, "1"},
			{token.BOOLEAN, "true"},
			{token.ID, "a"},
			{token.EQUALS, "="},
			{token.ID, "b"},
			{token.CLOSE, "}}"},
			{token.EOF, ""},
		}},
		{"numbers and literals", "{{f -1 2.5 null undefined}}", []expected{
			{token.OPEN, "{{"},
			{token.ID, "f"},
			{token.NUMBER, "-1"},
			{token.NUMBER, "2.5"},
			{token.NULL, "null"},
			{token.UNDEFINED, "undefined"},
			{token.CLOSE, "}}"},
			{token.EOF, ""},
		}},
		{"escaped quote", `{{f 'it\'s'}}`, []expected{
			{token.OPEN, "{{"},
			{token.ID, "f"},
			{token.STRING, "it's"},
			{token.CLOSE, "}}"},
			{token.EOF, ""},
		}},
		{"path", "{{../a.b}}", []expected{
			{token.OPEN, "{{"},
			{token.ID, ".."},
			{token.SEP, "/"},
			{token.ID, "a"},
			{token.SEP, "."},
			{token.ID, "b"},
			{token.CLOSE, "}}"},
			{token.EOF, ""},
		}},
		{"literal segment", "{{[foo bar]}}", []expected{
			{token.OPEN, "{{"},
			{token.ID, "[foo bar]"},
			{token.CLOSE, "}}"},
			{token.EOF, ""},
		}},
		{"data", "{{@index}}", []expected{
			{token.OPEN, "{{"},
			{token.DATA, "@"},
			{token.ID, "index"},
			{token.CLOSE, "}}"},
			{token.EOF, ""},
		}},
		{"sub-expression", "{{f (g x)}}", []expected{
			{token.OPEN, "{{"},
			{token.ID, "f"},
			{token.OPEN_SEXPR, "("},
			{token.ID, "g"},
			{token.ID, "x"},
			{token.CLOSE_SEXPR, ")"},
			{token.CLOSE, "}}"},
			{token.EOF, ""},
		}},
		{"block params", "{{#each a as |x i|}}", []expected{
			{token.OPEN_BLOCK, "{{#"},
			{token.ID, "each"},
			{token.ID, "a"},
			{token.OPEN_BLOCK_PARAMS, "as |"},
			{token.ID, "x"},
			{token.ID, "i"},
			{token.CLOSE_BLOCK_PARAMS, "|"},
			{token.CLOSE, "}}"},
			{token.EOF, ""},
		}},
		{"partial", "{{> nav}}", []expected{
			{token.OPEN_PARTIAL, "{{>"},
			{token.ID, "nav"},
			{token.CLOSE, "}}"},
			{token.EOF, ""},
		}},
		{"partial block", "{{#> layout}}", []expected{
			{token.OPEN_PARTIAL_BLOCK, "{{#>"},
			{token.ID, "layout"},
			{token.CLOSE, "}}"},
			{token.EOF, ""},
		}},
		{"decorator block", "{{#*inline}}", []expected{
			{token.OPEN_BLOCK, "{{#*"},
			{token.ID, "inline"},
			{token.CLOSE, "}}"},
			{token.EOF, ""},
		}},
		{"comment", "{{! hi }}", []expected{
			{token.COMMENT, "{{! hi }}"},
			{token.EOF, ""},
		}},
		{"long comment", "{{!-- a }} b --}}", []expected{
			{token.COMMENT, "{{!-- a }} b --}}"},
			{token.EOF, ""},
		}},
		{"escaped mustache", `\{{x}} {{y}}`, []expected{
			{token.CONTENT, "{{x}} "},
			{token.OPEN, "{{"},
			{token.ID, "y"},
			{token.CLOSE, "}}"},
			{token.EOF, ""},
		}},
		{"raw block", "{{{{raw}}}} {{x}} {{{{/raw}}}}", []expected{
			{token.OPEN_RAW_BLOCK, "{{{{"},
			{token.ID, "raw"},
			{token.CLOSE_RAW_BLOCK, "}}}}"},
			{token.CONTENT, " {{x}} "},
			{token.END_RAW_BLOCK, "raw"},
			{token.EOF, ""},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := lexAll(t, tt.input)
			got := make([]expected, 0, len(tokens))
			for _, tok := range tokens {
				got = append(got, expected{tok.Type, tok.Literal})
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestPositions(t *testing.T) {
	tokens, err := New("a\n{{b}}", WithFile("t.hbs")).Tokens()
	require.NoError(t, err)
	require.Len(t, tokens, 5)

	id := tokens[2]
	require.Equal(t, token.ID, id.Type)
	require.Equal(t, 2, id.StartPosition.LineNumber())
	require.Equal(t, 3, id.StartPosition.ColumnNumber())
	require.Equal(t, "t.hbs", id.StartPosition.File)
	require.Equal(t, 4, id.StartPosition.Char)
	require.Equal(t, 5, id.EndPosition.Char)
}

func TestEOFRepeats(t *testing.T) {
	l := New("x")
	tok, err := l.Next()
	require.NoError(t, err)
	require.Equal(t, token.CONTENT, tok.Type)
	for i := 0; i < 2; i++ {
		tok, err = l.Next()
		require.NoError(t, err)
		require.Equal(t, token.EOF, tok.Type)
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"{{foo", `invalid token "f"`},
		{"{{! never", "unterminated comment"},
		{"{{!-- never }}", "unterminated comment"},
		{"{{'abc}}", "unterminated string literal"},
		{"{{[abc}}", "unterminated path segment"},
		{"{{{{raw}}}} body", "unterminated raw block"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := New(tt.input).Tokens()
			require.Error(t, err)
			lerr, ok := err.(*Error)
			require.True(t, ok)
			require.Equal(t, tt.want, lerr.Message)
		})
	}
}

func TestErrorString(t *testing.T) {
	_, err := New("{{foo").Tokens()
	require.EqualError(t, err, `invalid token "f" (line 1, column 3)`)
}
