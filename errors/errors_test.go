package errors

import (
	"fmt"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"
)

func TestSourceLocation_String(t *testing.T) {
	tests := []struct {
		name     string
		loc      SourceLocation
		expected string
	}{
		{"with filename", SourceLocation{Filename: "page.hbs", Line: 10, Column: 5}, "page.hbs:10:5"},
		{"without filename", SourceLocation{Line: 10, Column: 5}, "10:5"},
		{"zero location", SourceLocation{}, "0:0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.loc.String())
		})
	}
}

func TestStackFrame_String(t *testing.T) {
	require.Equal(t, "at nav", StackFrame{Function: "nav"}.String())
	frame := StackFrame{Function: "nav", Location: SourceLocation{Filename: "page.hbs", Line: 2, Column: 1}}
	require.Equal(t, "at nav (page.hbs:2:1)", frame.String())
	require.Equal(t, "", FormatStackTrace(nil))
	require.Equal(t, "Stack trace:\n  at nav (page.hbs:2:1)\n", FormatStackTrace([]StackFrame{frame}))
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		category string
		desc     string
	}{
		{E1001, "parse", "unexpected token"},
		{E1004, "parse", "mismatched close tag"},
		{E2003, "compile", "unknown helper"},
		{E3002, "render", "missing partial"},
		{E3009, "render", "partial compile failure"},
		{ErrorCode("E9999"), "unknown", "unknown error"},
		{ErrorCode("X"), "unknown", "unknown error"},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			require.Equal(t, tt.category, tt.code.Category())
			require.Equal(t, tt.desc, tt.code.Description())
		})
	}
}

func TestCodes(t *testing.T) {
	codes := Codes()
	require.Len(t, codes, len(codeDescriptions))
	require.Equal(t, E1001, codes[0])
	require.Equal(t, E3009, codes[len(codes)-1])
	for i := 1; i < len(codes); i++ {
		require.Less(t, string(codes[i-1]), string(codes[i]))
	}
}

func TestCompileError(t *testing.T) {
	err := &CompileError{
		Code:     E1004,
		Message:  "if doesn't match each",
		Filename: "page.hbs",
		Line:     2,
		Column:   1,
	}
	require.Equal(t, "if doesn't match each - page.hbs:2:1", err.Error())
	require.Equal(t, "unknown helper foo", CompileErrorf(E2003, "unknown helper %s", "foo").Error())

	fe := err.ToFormatted()
	require.Equal(t, "parse error", fe.Kind)
	require.Empty(t, fe.SourceLines)

	cerr := &CompileError{
		Code:        E2003,
		Message:     "unknown helper iff",
		SourceLine:  "{{iff a}}",
		Line:        1,
		Column:      3,
		Suggestions: []Suggestion{{Value: "if", Distance: 1}},
	}
	fe = cerr.ToFormatted()
	require.Equal(t, "compile error", fe.Kind)
	require.Equal(t, "did you mean 'if'?", fe.Hint)
	require.Equal(t, []SourceLineEntry{{Number: 1, Text: "{{iff a}}", IsMain: true}}, fe.SourceLines)
}

func TestSourceLineAt(t *testing.T) {
	src := "one\ntwo\r\nthree"
	require.Equal(t, "one", SourceLineAt(src, 1))
	require.Equal(t, "two", SourceLineAt(src, 2))
	require.Equal(t, "three", SourceLineAt(src, 3))
	require.Equal(t, "", SourceLineAt(src, 4))
	require.Equal(t, "", SourceLineAt(src, 0))
}

func TestRenderError(t *testing.T) {
	err := RenderErrorf(E3001, "Missing helper: %q", "foo")
	require.Equal(t, `Missing helper: "foo"`, err.Error())
	require.True(t, err.IsFatal())

	err.Location = SourceLocation{Filename: "page.hbs", Line: 1, Column: 3}
	require.Equal(t, `Missing helper: "foo" (page.hbs:1:3)`, err.Error())

	cause := fmt.Errorf("boom")
	wrapped := NewRenderError(E3008, cause)
	require.Equal(t, "boom", wrapped.Error())
	require.ErrorIs(t, wrapped, cause)

	// an existing render error is returned as is
	again := NewRenderError(E3008, fmt.Errorf("outer: %w", err))
	require.Same(t, err, again)
	require.Equal(t, E3001, again.Code)
}

func TestRenderError_WithFrame(t *testing.T) {
	err := RenderErrorf(E3002, "The partial nav could not be found")
	err.WithFrame("layout", SourceLocation{Line: 4, Column: 2})
	require.Len(t, err.Stack, 1)

	fe := err.ToFormatted()
	require.Equal(t, "render error", fe.Kind)
	require.Equal(t, err.Stack, fe.Stack)

	out := NewFormatter(false).Format(fe)
	require.Contains(t, out, "stack trace:")
	require.Contains(t, out, "at layout (4:2)")
}

func TestSuggestSimilar(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		candidates []string
		expected   []string
	}{
		{"short name", "iff", []string{"if", "each", "unless"}, []string{"if"}},
		{"medium name", "unles", []string{"if", "each", "unless"}, []string{"unless"}},
		{"case insensitive", "EACH", []string{"eachh"}, []string{"eachh"}},
		{"exact match skipped", "each", []string{"Each"}, nil},
		{"nothing close", "partial", []string{"if", "with"}, nil},
		{"empty target", "", []string{"if"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, s := range SuggestSimilar(tt.target, tt.candidates) {
				got = append(got, s.Value)
			}
			require.Equal(t, tt.expected, got)
		})
	}
}

func TestSuggestSimilar_MaxSuggestions(t *testing.T) {
	got := SuggestSimilar("abcd", []string{"abch", "abcg", "abcf", "abce"})
	require.Len(t, got, MaxSuggestions)
	require.Equal(t, "abce", got[0].Value)
	require.Equal(t, "abcg", got[2].Value)
}

func TestFormatSuggestions(t *testing.T) {
	require.Equal(t, "", FormatSuggestions(nil))
	require.Equal(t, "did you mean 'if'?", FormatSuggestions([]Suggestion{{Value: "if"}}))
	require.Equal(t, "did you mean one of: 'a', 'b'?",
		FormatSuggestions([]Suggestion{{Value: "a"}, {Value: "b"}}))
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"kitten", "sitting", 3},
		{"", "abc", 3},
		{"abc", "abc", 0},
		{"each", "eahc", 2},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, levenshteinDistance(tt.a, tt.b), "%s/%s", tt.a, tt.b)
	}
}

func TestFormatter_Format(t *testing.T) {
	fe := &FormattedError{
		Code:        E1004,
		Kind:        "parse error",
		Message:     "if doesn't match each",
		Filename:    "page.hbs",
		Line:        2,
		Column:      1,
		SourceLines: []SourceLineEntry{{Number: 2, Text: "{{#if a}}{{/each}}", IsMain: true}},
	}
	want := "parse error[E1004]: if doesn't match each\n" +
		"  --> page.hbs:2:1\n" +
		"   |\n" +
		" 2 | {{#if a}}{{/each}}\n" +
		"   | ^\n"
	require.Equal(t, want, NewFormatter(false).Format(fe))
}

func TestFormatter_FormatMultiCharUnderline(t *testing.T) {
	fe := &FormattedError{
		Message:     "unknown helper",
		Line:        1,
		Column:      3,
		EndColumn:   5,
		SourceLines: []SourceLineEntry{{Number: 1, Text: "{{iff}}", IsMain: true}},
	}
	out := NewFormatter(false).Format(fe)
	require.Contains(t, out, "   |   ^^^\n")
}

func TestFormatter_FormatWithHintAndNote(t *testing.T) {
	fe := &FormattedError{Message: "oops", Hint: "did you mean 'if'?", Note: "helpers are case sensitive"}
	out := NewFormatter(false).Format(fe)
	require.Equal(t, "error: oops\n   = hint: did you mean 'if'?\n   = note: helpers are case sensitive\n", out)
}

func TestFormatter_FormatMultiple(t *testing.T) {
	f := NewFormatter(false)
	require.Equal(t, "", f.FormatMultiple(nil))
	out := f.FormatMultiple([]*FormattedError{{Message: "first"}, {Message: "second"}})
	require.Contains(t, out, "error[1/2]: first\n")
	require.Contains(t, out, "error[2/2]: second\n")
	require.True(t, strings.HasSuffix(out, "found 2 errors\n"))
}

func TestFormatter_FormatError(t *testing.T) {
	f := NewFormatter(false)
	require.Equal(t, "", f.FormatError(nil))
	require.Equal(t, "error: boom\n", f.FormatError(fmt.Errorf("boom")))

	var merr *multierror.Error
	merr = multierror.Append(merr,
		&CompileError{Code: E1001, Message: "first", Filename: "a.hbs", Line: 1, Column: 1},
		RenderErrorf(E3003, "second"),
	)
	out := f.FormatError(merr)
	require.Contains(t, out, "parse error[E1001]: first")
	require.Contains(t, out, "render error[E3003]: second")
	require.Contains(t, out, "found 2 errors")
}

func TestFormatter_FormatWithColor(t *testing.T) {
	out := NewFormatter(true).Format(&FormattedError{Message: "oops"})
	require.Contains(t, out, "\x1b[")
	require.Contains(t, out, "oops")
}
