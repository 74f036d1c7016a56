package parser

import (
	"context"
	"testing"

	"github.com/deepnoodle-ai/hbs/ast"
	"github.com/deepnoodle-ai/hbs/errors"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, input string) *ast.Program {
	t.Helper()
	prog, err := Parse(context.Background(), input)
	require.NoError(t, err)
	return prog
}

func parseStmt[T ast.Stmt](t *testing.T, input string) T {
	t.Helper()
	prog := parse(t, input)
	require.Len(t, prog.Body, 1)
	stmt, ok := prog.Body[0].(T)
	require.True(t, ok, "got %T", prog.Body[0])
	return stmt
}

func path(t *testing.T, e ast.Expr) *ast.PathExpression {
	t.Helper()
	p, ok := e.(*ast.PathExpression)
	require.True(t, ok, "got %T", e)
	return p
}

func TestContentAndMustache(t *testing.T) {
	prog := parse(t, "Hello {{name}}!")
	require.Len(t, prog.Body, 3)

	content, ok := prog.Body[0].(*ast.ContentStatement)
	require.True(t, ok)
	require.Equal(t, "Hello ", content.Value)
	require.Equal(t, "Hello ", content.Original)

	m, ok := prog.Body[1].(*ast.MustacheStatement)
	require.True(t, ok)
	require.True(t, m.Escaped)
	require.Equal(t, "name", path(t, m.Path).Original)
	require.True(t, path(t, m.Path).IsSimple())
}

func TestUnescaped(t *testing.T) {
	for _, input := range []string{"{{{x}}}", "{{&x}}", "{{~{x}~}}"} {
		m := parseStmt[*ast.MustacheStatement](t, input)
		require.False(t, m.Escaped, input)
	}
}

func TestPaths(t *testing.T) {
	m := parseStmt[*ast.MustacheStatement](t, "{{foo.bar ../baz @index this.x [a b] ./y}}")
	require.Len(t, m.Params, 5)

	head := path(t, m.Path)
	require.Equal(t, []string{"foo", "bar"}, head.Parts)
	require.Equal(t, "foo", head.Head())
	require.Equal(t, []string{"bar"}, head.Tail())

	parent := path(t, m.Params[0])
	require.Equal(t, 1, parent.Depth)
	require.Equal(t, []string{"baz"}, parent.Parts)
	require.Equal(t, "../baz", parent.Original)

	data := path(t, m.Params[1])
	require.True(t, data.Data)
	require.Equal(t, []string{"index"}, data.Parts)
	require.Equal(t, "@index", data.Original)

	scoped := path(t, m.Params[2])
	require.Equal(t, []string{"x"}, scoped.Parts)
	require.True(t, scoped.IsScoped())
	require.False(t, scoped.IsSimple())

	literal := path(t, m.Params[3])
	require.Equal(t, []string{"a b"}, literal.Parts)

	dot := path(t, m.Params[4])
	require.Equal(t, []string{"y"}, dot.Parts)
	require.True(t, dot.IsScoped())
}

func TestThis(t *testing.T) {
	m := parseStmt[*ast.MustacheStatement](t, "{{this}}")
	p := path(t, m.Path)
	require.Empty(t, p.Parts)
	require.Equal(t, "", p.Head())
	require.True(t, p.IsScoped())
}

func TestArguments(t *testing.T) {
	m := parseStmt[*ast.MustacheStatement](t, `{{f 1 2.5 "s" true null undefined k=v b=(g x)}}`)
	require.Len(t, m.Params, 6)

	num, ok := m.Params[0].(*ast.NumberLiteral)
	require.True(t, ok)
	require.Equal(t, 1.0, num.Value)
	require.True(t, num.IsInteger())

	frac, ok := m.Params[1].(*ast.NumberLiteral)
	require.True(t, ok)
	require.False(t, frac.IsInteger())

	str, ok := m.Params[2].(*ast.StringLiteral)
	require.True(t, ok)
	require.Equal(t, "s", str.Value)

	b, ok := m.Params[3].(*ast.BooleanLiteral)
	require.True(t, ok)
	require.True(t, b.Value)

	require.IsType(t, &ast.NullLiteral{}, m.Params[4])
	require.IsType(t, &ast.UndefinedLiteral{}, m.Params[5])

	require.NotNil(t, m.Hash)
	require.Len(t, m.Hash.Pairs, 2)
	require.Equal(t, "k", m.Hash.Pairs[0].Key)
	require.Equal(t, "v", path(t, m.Hash.Pairs[0].Value).Original)
	require.Equal(t, "b", m.Hash.Pairs[1].Key)
	sub, ok := m.Hash.Pairs[1].Value.(*ast.SubExpression)
	require.True(t, ok)
	require.Equal(t, "g", path(t, sub.Path).Original)
	require.Len(t, sub.Params, 1)
}

func TestBlock(t *testing.T) {
	block := parseStmt[*ast.BlockStatement](t, "{{#if a}}x{{else}}y{{/if}}")
	require.Equal(t, "if", path(t, block.Path).Original)
	require.Len(t, block.Params, 1)
	require.Len(t, block.Program.Body, 1)
	require.Equal(t, "x", block.Program.Body[0].String())
	require.NotNil(t, block.Inverse)
	require.Equal(t, "y", block.Inverse.Body[0].String())
	require.False(t, block.Inverse.Chained)
}

func TestInvertedSection(t *testing.T) {
	block := parseStmt[*ast.BlockStatement](t, "{{^a}}x{{/a}}")
	require.Nil(t, block.Program)
	require.NotNil(t, block.Inverse)
	require.Equal(t, "x", block.Inverse.String())
}

func TestElseChain(t *testing.T) {
	block := parseStmt[*ast.BlockStatement](t, "{{#if a}}1{{else if b}}2{{else}}3{{~/if}}")
	require.NotNil(t, block.Inverse)
	require.True(t, block.Inverse.Chained)
	require.Len(t, block.Inverse.Body, 1)

	inner, ok := block.Inverse.Body[0].(*ast.BlockStatement)
	require.True(t, ok)
	require.Equal(t, "if", path(t, inner.Path).Original)
	require.Equal(t, "b", path(t, inner.Params[0]).Original)
	require.Equal(t, "2", inner.Program.String())
	require.Equal(t, "3", inner.Inverse.String())

	// the closing tag's strip flags apply to every block of the chain
	require.True(t, block.CloseStrip.Open)
	require.True(t, inner.CloseStrip.Open)
}

func TestBlockParams(t *testing.T) {
	block := parseStmt[*ast.BlockStatement](t, "{{#each xs as |x i|}}{{x}}{{/each}}")
	require.Equal(t, []string{"x", "i"}, block.Program.BlockParams)
}

func TestStripFlags(t *testing.T) {
	block := parseStmt[*ast.BlockStatement](t, "{{~#if a~}}x{{~else~}}y{{~/if~}}")
	require.Equal(t, ast.StripFlags{Open: true, Close: true}, block.OpenStrip)
	require.Equal(t, ast.StripFlags{Open: true, Close: true}, block.InverseStrip)
	require.Equal(t, ast.StripFlags{Open: true, Close: true}, block.CloseStrip)

	m := parseStmt[*ast.MustacheStatement](t, "{{~x}}")
	require.Equal(t, ast.StripFlags{Open: true}, m.Strip)
}

func TestComments(t *testing.T) {
	tests := []struct {
		input string
		value string
		strip ast.StripFlags
	}{
		{"{{! hi }}", " hi ", ast.StripFlags{}},
		{"{{!-- a }} b --}}", " a }} b ", ast.StripFlags{}},
		{"{{~! x ~}}", " x ", ast.StripFlags{Open: true, Close: true}},
	}
	for _, tt := range tests {
		c := parseStmt[*ast.CommentStatement](t, tt.input)
		require.Equal(t, tt.value, c.Value, tt.input)
		require.Equal(t, tt.strip, c.Strip, tt.input)
	}
}

func TestPartials(t *testing.T) {
	p := parseStmt[*ast.PartialStatement](t, "{{> nav a k=v}}")
	require.Equal(t, "nav", path(t, p.Name).Original)
	require.Len(t, p.Params, 1)
	require.Len(t, p.Hash.Pairs, 1)

	p = parseStmt[*ast.PartialStatement](t, `{{> "my-nav"}}`)
	require.IsType(t, &ast.StringLiteral{}, p.Name)

	p = parseStmt[*ast.PartialStatement](t, "{{> (which)}}")
	require.IsType(t, &ast.SubExpression{}, p.Name)

	pb := parseStmt[*ast.PartialBlockStatement](t, "{{#> layout}}default{{/layout}}")
	require.Equal(t, "layout", path(t, pb.Name).Original)
	require.Equal(t, "default", pb.Program.String())
}

func TestDecorators(t *testing.T) {
	d := parseStmt[*ast.Decorator](t, "{{* dec 1}}")
	require.Equal(t, "dec", path(t, d.Path).Original)
	require.Len(t, d.Params, 1)

	db := parseStmt[*ast.DecoratorBlock](t, `{{#*inline "p"}}body{{/inline}}`)
	require.Equal(t, "inline", path(t, db.Path).Original)
	require.Equal(t, "body", db.Program.String())
}

func TestRawBlock(t *testing.T) {
	block := parseStmt[*ast.BlockStatement](t, "{{{{raw}}}}{{x}} {{#y}}{{{{/raw}}}}")
	require.Equal(t, "raw", path(t, block.Path).Original)
	require.Equal(t, "{{x}} {{#y}}", block.Program.String())
	require.Nil(t, block.Inverse)
}

func TestEscapedMustache(t *testing.T) {
	prog := parse(t, `a\{{b}}`)
	require.Equal(t, `a{{b}}`, prog.String())
}

func TestPositions(t *testing.T) {
	prog := parse(t, "a\n  {{b}}")
	m, ok := prog.Body[1].(*ast.MustacheStatement)
	require.True(t, ok)
	require.Equal(t, 2, m.Pos().LineNumber())
	require.Equal(t, 3, m.Pos().ColumnNumber())
	require.Equal(t, 2, m.End().LineNumber())
	require.Equal(t, 8, m.End().ColumnNumber())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		code    errors.ErrorCode
		message string
	}{
		{"mismatched close", "{{#if a}}x{{/each}}", errors.E1004, "if doesn't match each"},
		{"unclosed block", "{{#if a}}x", errors.E1001, ""},
		{"stray else", "a{{else}}b", errors.E1001, ""},
		{"invalid token", "{{foo", errors.E1003, ""},
		{"unterminated string", "{{'abc}}", errors.E1002, ""},
		{"unterminated comment", "{{! x", errors.E1007, ""},
		{"invalid path", "{{foo.this}}", errors.E1005, "Invalid path: foo.this"},
		{"inverse on decorator", "{{#*inline \"a\"}}x{{else}}y{{/inline}}", errors.E1006, "Unexpected inverse block on decorator"},
		{"empty block params", "{{#each xs as ||}}{{/each}}", errors.E1001, ""},
		{"missing close", "{{foo bar", errors.E1003, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(context.Background(), tt.input)
			require.Error(t, err)
			var cerr *errors.CompileError
			require.True(t, errors.As(err, &cerr), "got %T", err)
			require.Equal(t, tt.code, cerr.Code)
			if tt.message != "" {
				require.Equal(t, tt.message, cerr.Message)
			}
		})
	}
}

func TestErrorLocation(t *testing.T) {
	_, err := Parse(context.Background(), "line one\n{{#if a}}{{/with}}", WithFilename("page.hbs"))
	var cerr *errors.CompileError
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, "page.hbs", cerr.Filename)
	require.Equal(t, 2, cerr.Line)
	require.Equal(t, 1, cerr.Column)
	require.Equal(t, "{{#if a}}{{/with}}", cerr.SourceLine)
	require.Equal(t, "if doesn't match with - page.hbs:2:1", cerr.Error())
}

func TestMaxDepth(t *testing.T) {
	src := "{{#a}}{{#b}}{{#c}}{{/c}}{{/b}}{{/a}}"
	_, err := Parse(context.Background(), src, WithMaxDepth(3))
	require.NoError(t, err)

	_, err = Parse(context.Background(), src, WithMaxDepth(2))
	var cerr *errors.CompileError
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, errors.E1006, cerr.Code)
}

func TestCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Parse(ctx, "a{{b}}")
	require.ErrorIs(t, err, context.Canceled)
}
