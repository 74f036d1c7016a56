package ast_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/deepnoodle-ai/hbs/ast"
	"github.com/deepnoodle-ai/hbs/parser"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := parser.Parse(context.Background(), src)
	require.NoError(t, err)
	return prog
}

func TestString(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"Hello {{name}}!", "Hello {{name}}!"},
		{"{{{x}}}", "{{{x}}}"},
		{`{{f "a" 1 k=(g b)}}`, `{{f "a" 1 k=(g b)}}`},
		{"{{#each xs as |x|}}{{x}}{{else}}none{{/each}}", "{{#each xs as |x|}}{{x}}{{else}}none{{/each}}"},
		{"{{> nav a}}", "{{>nav a}}"},
		{"{{#> layout}}d{{/layout}}", "{{#>layout}}d{{/layout}}"},
		{"{{! hi }}", "{{! hi }}"},
		{"{{../a}} {{@index}}", "{{../a}} {{@index}}"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			require.Equal(t, tt.want, parse(t, tt.src).String())
		})
	}
}

func TestInspect(t *testing.T) {
	prog := parse(t, "{{#if (eq a 1)}}{{x}}{{else}}{{> p k=v}}{{/if}}")
	counts := map[string]int{}
	ast.Inspect(prog, func(n ast.Node) bool {
		counts[fmt.Sprintf("%T", n)]++
		return true
	})
	require.Equal(t, map[string]int{
		"*ast.Program":           3,
		"*ast.BlockStatement":    1,
		"*ast.SubExpression":     1,
		"*ast.PathExpression":    6,
		"*ast.NumberLiteral":     1,
		"*ast.MustacheStatement": 1,
		"*ast.PartialStatement":  1,
		"*ast.Hash":              1,
		"*ast.HashPair":          1,
	}, counts)
}

func TestInspectPrune(t *testing.T) {
	prog := parse(t, "{{#if a}}{{x}}{{/if}}")
	var visited []string
	ast.Inspect(prog, func(n ast.Node) bool {
		visited = append(visited, fmt.Sprintf("%T", n))
		_, isBlock := n.(*ast.BlockStatement)
		return !isBlock
	})
	require.Equal(t, []string{"*ast.Program", "*ast.BlockStatement"}, visited)
}

func TestPreorder(t *testing.T) {
	prog := parse(t, "a{{b}}c")
	var got []string
	for n := range ast.Preorder(prog) {
		got = append(got, fmt.Sprintf("%T", n))
		if len(got) == 3 {
			break
		}
	}
	require.Equal(t, []string{"*ast.Program", "*ast.ContentStatement", "*ast.MustacheStatement"}, got)
}

func TestChildrenSkipsMissing(t *testing.T) {
	block := &ast.BlockStatement{
		Path:    &ast.PathExpression{Parts: []string{"if"}, Original: "if"},
		Program: &ast.Program{},
	}
	children := ast.Children(block)
	require.Len(t, children, 2)
	require.IsType(t, &ast.PathExpression{}, children[0])
	require.IsType(t, &ast.Program{}, children[1])
}

func TestPathScoping(t *testing.T) {
	tests := []struct {
		original string
		parts    []string
		depth    int
		scoped   bool
		simple   bool
	}{
		{"foo", []string{"foo"}, 0, false, true},
		{"foo.bar", []string{"foo", "bar"}, 0, false, false},
		{"this.foo", []string{"foo"}, 0, true, false},
		{"./foo", []string{"foo"}, 0, true, false},
		{"thisThing", []string{"thisThing"}, 0, false, true},
		{"../foo", []string{"foo"}, 1, true, false},
	}
	for _, tt := range tests {
		p := &ast.PathExpression{Original: tt.original, Parts: tt.parts, Depth: tt.depth}
		require.Equal(t, tt.scoped, p.IsScoped(), tt.original)
		require.Equal(t, tt.simple, p.IsSimple(), tt.original)
	}
}
