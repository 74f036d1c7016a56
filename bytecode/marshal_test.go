package bytecode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/hbs/compiler"
	"github.com/deepnoodle-ai/hbs/op"
)

func sampleTemplate() *Template {
	dec := NewCode(CodeParams{
		Name:         "main_d",
		Instructions: []op.Code{op.LoadConst, 0, op.PushProgram, 0, op.PushProgram, op.NoProgram, op.EmptyHash, 0, op.RegisterDecorator, 1, 0},
		Constants:    []any{"p"},
		Names:        []string{"inline"},
	})
	main := NewCode(CodeParams{
		Name: "main",
		Instructions: []op.Code{
			op.AppendContent, 0,
			op.LookupOnContext, 0, 0, 0,
			op.LoadConst, 1,
			op.LoadConst, 2,
			op.LoadConst, 3,
			op.Nil,
		},
		Constants:  []any{"hello ", 1, 2.5, true},
		Paths:      [][]string{{"a", "b"}},
		Locations:  []SourceLocation{{Line: 1, Column: 1}, {Line: 1, Column: 1}},
		Decorators: dec,
	})
	child := NewCode(CodeParams{
		Name:         "program0",
		Instructions: []op.Code{op.AppendContent, 0},
		Constants:    []any{"x"},
		BlockParams:  1,
		IsSimple:     true,
	})
	return NewTemplate(TemplateParams{
		ID:            "0b4c9a1e-7f7e-4c8e-9f5e-6d7a2a3b4c5d",
		Filename:      "page.hbs",
		Source:        "hello {{a.b}}",
		Revision:      CurrentRevision(),
		Options:       &compiler.Options{Strict: true, KnownHelpers: map[string]bool{"x": true}},
		Main:          main,
		Programs:      []*Code{child},
		UsePartial:    true,
		UseDecorators: true,
	})
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	tmpl := sampleTemplate()
	data, err := Marshal(tmpl)
	require.NoError(t, err)

	restored, err := Unmarshal(data)
	require.NoError(t, err)

	require.Equal(t, tmpl.ID(), restored.ID())
	require.Equal(t, tmpl.Filename(), restored.Filename())
	require.Equal(t, tmpl.Source(), restored.Source())
	require.Equal(t, tmpl.Revision(), restored.Revision())
	require.Equal(t, tmpl.Options(), restored.Options())
	require.True(t, restored.UsePartial())
	require.True(t, restored.UseDecorators())
	require.False(t, restored.UseDepths())

	main := restored.Main()
	require.Equal(t, "main", main.Name())
	require.Equal(t, tmpl.Main().InstructionCount(), main.InstructionCount())
	require.Equal(t, "hello ", main.ConstantAt(0))
	require.Equal(t, 1, main.ConstantAt(1))
	require.Equal(t, 2.5, main.ConstantAt(2))
	require.Equal(t, true, main.ConstantAt(3))
	require.Equal(t, []string{"a", "b"}, main.PathAt(0))
	require.Equal(t, SourceLocation{Line: 1, Column: 1}, main.LocationAt(0))

	dec := main.Decorators()
	require.NotNil(t, dec)
	require.Equal(t, "inline", dec.NameAt(0))
	require.Equal(t, op.RegisterDecorator, dec.InstructionAt(8))

	require.Equal(t, 1, restored.ProgramCount())
	child := restored.ProgramAt(0)
	require.Equal(t, "program0", child.Name())
	require.Equal(t, 1, child.BlockParams())
	require.True(t, child.IsSimple())
	require.Nil(t, child.Decorators())
}

func TestPeekRevision(t *testing.T) {
	data, err := Marshal(sampleTemplate())
	require.NoError(t, err)
	rev, err := PeekRevision(data)
	require.NoError(t, err)
	require.Equal(t, CurrentRevision(), rev)

	rev, err = PeekRevision([]byte(`{"id":"x"}`))
	require.NoError(t, err)
	require.Equal(t, 1, rev.Number)

	_, err = PeekRevision([]byte(`not json`))
	require.Error(t, err)
}

func TestUnmarshalErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		err  string
	}{
		{"bad json", `{`, "unexpected end of JSON input"},
		{"bad main", `{"main":3,"codes":[{"name":"main","instructions":[],"constants":[],"decorators":-1}]}`, "invalid code index 3"},
		{"bad decorator", `{"main":0,"codes":[{"name":"main","instructions":[],"constants":[],"decorators":0}]}`, "invalid decorator index 0"},
		{"bad constant", `{"main":0,"codes":[{"name":"main","instructions":[],"constants":[{"type":"list"}],"decorators":-1}]}`, "unknown constant type: list"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.data))
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name         string
		instructions []op.Code
		err          string
	}{
		{"valid", []op.Code{op.AppendContent, 0, op.PushProgram, op.NoProgram, op.LookupOnContext, 0, 0, 0}, ""},
		{"unknown opcode", []op.Code{99}, "invalid opcode 99 at offset 0"},
		{"compiler only opcode", []op.Code{op.GetContext}, "invalid opcode 10"},
		{"truncated", []op.Code{op.AppendContent, 0, op.InvokeHelper, 0}, "truncated INVOKE_HELPER at offset 2"},
		{"constant out of range", []op.Code{op.LoadConst, 5}, "constant index 5 out of range"},
		{"content is not a string", []op.Code{op.AppendContent, 1}, "constant 1 is not a string"},
		{"name out of range", []op.Code{op.InvokeAmbiguous, 2, 0}, "name index 2 out of range"},
		{"path out of range", []op.Code{op.LookupData, 0, 1, 0}, "path index 1 out of range"},
		{"program out of range", []op.Code{op.PushProgram, 1}, "program index 1 out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			main := NewCode(CodeParams{
				Name:         "main",
				Instructions: tt.instructions,
				Constants:    []any{"x", 1},
				Names:        []string{"foo"},
				Paths:        [][]string{{"a"}},
			})
			child := NewCode(CodeParams{Name: "program0"})
			tmpl := NewTemplate(TemplateParams{
				Revision: CurrentRevision(),
				Options:  &compiler.Options{},
				Main:     main,
				Programs: []*Code{child},
			})
			err := Validate(tmpl)
			if tt.err == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestValidateDecorators(t *testing.T) {
	dec := NewCode(CodeParams{Name: "main_d", Instructions: []op.Code{op.RegisterDecorator, 0, 0}})
	tmpl := NewTemplate(TemplateParams{
		Revision: CurrentRevision(),
		Options:  &compiler.Options{},
		Main:     NewCode(CodeParams{Name: "main", Decorators: dec}),
	})
	err := Validate(tmpl)
	require.Error(t, err)
	require.Contains(t, err.Error(), "main_d: REGISTER_DECORATOR at offset 0: name index 0 out of range")
}

func TestUnmarshalValidates(t *testing.T) {
	data := `{"main":0,"codes":[{"name":"main","instructions":[1,7],"constants":[{"type":"string","value":"x"}],"decorators":-1}]}`
	_, err := Unmarshal([]byte(data))
	require.Error(t, err)
	require.Contains(t, err.Error(), "main: APPEND_CONTENT at offset 0: constant index 7 out of range")
}

func TestMarshalUnknownConstant(t *testing.T) {
	tmpl := NewTemplate(TemplateParams{
		Main: NewCode(CodeParams{Constants: []any{[]int{1}}}),
	})
	_, err := Marshal(tmpl)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown constant type: []int")
}
