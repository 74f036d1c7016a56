package bytecode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/hbs/compiler"
	"github.com/deepnoodle-ai/hbs/op"
)

func TestNewCodeImmutability(t *testing.T) {
	instructions := []op.Code{op.LoadConst, 0, op.Append}
	constants := []any{42, "hello"}
	names := []string{"foo", "bar"}
	paths := [][]string{{"a", "b"}}
	locations := []SourceLocation{{Line: 1, Column: 1}, {Line: 1, Column: 5}}

	code := NewCode(CodeParams{
		Name:         "main",
		Instructions: instructions,
		Constants:    constants,
		Names:        names,
		Paths:        paths,
		Locations:    locations,
	})

	instructions[0] = op.Nil
	constants[0] = 99
	names[0] = "modified"
	paths[0][0] = "modified"
	locations[0] = SourceLocation{Line: 999, Column: 999}

	require.Equal(t, op.LoadConst, code.InstructionAt(0))
	require.Equal(t, 42, code.ConstantAt(0))
	require.Equal(t, "foo", code.NameAt(0))
	require.Equal(t, []string{"a", "b"}, code.PathAt(0))
	require.Equal(t, 1, code.LocationAt(0).Line)
}

func TestCodeAccessors(t *testing.T) {
	dec := NewCode(CodeParams{Name: "main_d", Instructions: []op.Code{op.Nil}})
	code := NewCode(CodeParams{
		Name:         "program1",
		Instructions: []op.Code{op.AppendContent, 0},
		Constants:    []any{"x"},
		Locations:    []SourceLocation{{Line: 2, Column: 3}, {Line: 2, Column: 3}},
		Decorators:   dec,
		BlockParams:  2,
		IsSimple:     true,
	})
	require.Equal(t, "program1", code.Name())
	require.Equal(t, 2, code.InstructionCount())
	require.Equal(t, 1, code.ConstantCount())
	require.Equal(t, 0, code.NameCount())
	require.Equal(t, 0, code.PathCount())
	require.Equal(t, 2, code.LocationCount())
	require.Equal(t, SourceLocation{Line: 2, Column: 3}, code.LocationAt(1))
	require.True(t, code.LocationAt(5).IsZero())
	require.Equal(t, "2:3", code.LocationAt(0).String())
	require.Same(t, dec, code.Decorators())
	require.Equal(t, 2, code.BlockParams())
	require.True(t, code.IsSimple())
}

func TestInstructionIter(t *testing.T) {
	code := NewCode(CodeParams{
		Instructions: []op.Code{
			op.AppendContent, 0,
			op.LookupOnContext, 0, 1, op.Code(op.Falsy),
			op.Append,
		},
	})
	iter := NewInstructionIter(code)
	all := iter.All()
	require.Equal(t, [][]op.Code{
		{op.AppendContent, 0},
		{op.LookupOnContext, 0, 1, op.Code(op.Falsy)},
		{op.Append},
	}, all)
	require.Equal(t, 7, iter.Offset())
}

func TestTemplateAccessors(t *testing.T) {
	main := NewCode(CodeParams{Name: "main", Instructions: []op.Code{op.PushProgram, 0, op.Append}})
	child := NewCode(CodeParams{
		Name:         "program0",
		Instructions: []op.Code{op.AppendContent, 0},
		Constants:    []any{"x"},
		Decorators:   NewCode(CodeParams{Instructions: []op.Code{op.Nil}}),
	})
	opts := &compiler.Options{Compat: true, Strict: true}
	tmpl := NewTemplate(TemplateParams{
		ID:        "id-1",
		Filename:  "page.hbs",
		Source:    "line one\nline two",
		Revision:  CurrentRevision(),
		Options:   opts,
		Main:      main,
		Programs:  []*Code{child},
		UseDepths: true,
	})
	opts.Strict = false

	require.Equal(t, "id-1", tmpl.ID())
	require.Equal(t, "page.hbs", tmpl.Filename())
	require.Equal(t, Revision{Number: CompilerRevision, Version: Version}, tmpl.Revision())
	require.True(t, tmpl.Strict())
	require.True(t, tmpl.Compat())
	require.True(t, tmpl.UseData())
	require.True(t, tmpl.UseDepths())
	require.False(t, tmpl.UsePartial())
	require.Equal(t, 1, tmpl.ProgramCount())
	require.Same(t, child, tmpl.ProgramAt(0))
	require.Equal(t, []*Code{main, child}, tmpl.Codes())
	require.Equal(t, "line two", tmpl.GetSourceLine(2))
	require.Equal(t, "", tmpl.GetSourceLine(3))

	require.Equal(t, Stats{
		InstructionCount: 6,
		ConstantCount:    1,
		ProgramCount:     1,
		DecoratorCount:   1,
		SourceBytes:      17,
	}, tmpl.Stats())
}
