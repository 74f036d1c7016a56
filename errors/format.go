package errors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
)

// Formatter renders errors as rust-style reports, optionally colored.
type Formatter struct {
	// UseColor enables ANSI color codes in output.
	UseColor bool
}

// NewFormatter creates a new error formatter.
func NewFormatter(useColor bool) *Formatter {
	return &Formatter{UseColor: useColor}
}

type style []color.Attribute

var (
	colorError     = style{color.FgRed}
	colorErrorBold = style{color.FgHiRed, color.Bold}
	colorDim       = style{color.FgHiBlack}
	colorLocation  = style{color.FgCyan}
	colorCaret     = style{color.FgHiRed}
	colorHint      = style{color.FgHiYellow}
	colorNote      = style{color.FgHiBlue}
)

// FormattedError represents an error ready for display.
type FormattedError struct {
	Code        ErrorCode
	Kind        string // "parse error", "compile error", "render error"
	Message     string
	Filename    string
	Line        int
	Column      int
	EndColumn   int
	SourceLines []SourceLineEntry
	Hint        string
	Note        string
	Stack       []StackFrame
}

// SourceLineEntry represents a line of source with its number.
type SourceLineEntry struct {
	Number int
	Text   string
	IsMain bool // True if this is the line with the error
}

func (f *Formatter) paint(st style, s string) string {
	if !f.UseColor {
		return s
	}
	c := color.New(st...)
	c.EnableColor()
	return c.Sprint(s)
}

// Format formats the error as a string.
func (f *Formatter) Format(err *FormattedError) string {
	return f.FormatWithPrefix(err, "")
}

// FormatWithPrefix formats the error with an optional prefix like "1/5".
func (f *Formatter) FormatWithPrefix(err *FormattedError, prefix string) string {
	var b strings.Builder
	width := 2
	if err.Line >= 100 {
		width = len(fmt.Sprint(err.Line))
	}
	pad := strings.Repeat(" ", width)

	label := "error"
	if err.Kind != "" {
		label = err.Kind
	}
	b.WriteString(f.paint(colorErrorBold, label))
	switch {
	case err.Code != "":
		b.WriteString(f.paint(colorDim, "["+string(err.Code)+"]"))
	case prefix != "":
		b.WriteString(f.paint(colorDim, "["+prefix+"]"))
	}
	b.WriteString(f.paint(colorError, ": "))
	b.WriteString(err.Message)
	b.WriteString("\n")

	if err.Line > 0 || err.Filename != "" {
		loc := err.Filename
		if err.Line > 0 {
			if loc != "" {
				loc += ":"
			}
			loc += fmt.Sprintf("%d:%d", err.Line, err.Column)
		}
		b.WriteString(pad)
		b.WriteString(f.paint(colorLocation, "-->"))
		b.WriteString(" ")
		b.WriteString(f.paint(colorLocation, loc))
		b.WriteString("\n")
	}

	if len(err.SourceLines) > 0 {
		b.WriteString(pad)
		b.WriteString(f.paint(colorDim, " |\n"))
		for _, line := range err.SourceLines {
			b.WriteString(f.paint(colorDim, fmt.Sprintf("%*d | ", width, line.Number)))
			b.WriteString(line.Text)
			b.WriteString("\n")
			if !line.IsMain || err.Column < 1 {
				continue
			}
			n := 1
			if err.EndColumn > err.Column {
				n = err.EndColumn - err.Column + 1
			}
			b.WriteString(pad)
			b.WriteString(f.paint(colorDim, " | "))
			b.WriteString(strings.Repeat(" ", err.Column-1))
			b.WriteString(f.paint(colorCaret, strings.Repeat("^", n)))
			b.WriteString("\n")
		}
	}

	if err.Hint != "" {
		b.WriteString(pad)
		b.WriteString(f.paint(colorDim, " = "))
		b.WriteString(f.paint(colorHint, "hint: "))
		b.WriteString(err.Hint)
		b.WriteString("\n")
	}
	if err.Note != "" {
		b.WriteString(pad)
		b.WriteString(f.paint(colorDim, " = "))
		b.WriteString(f.paint(colorNote, "note: "))
		b.WriteString(err.Note)
		b.WriteString("\n")
	}
	if len(err.Stack) > 0 {
		b.WriteString(pad)
		b.WriteString(f.paint(colorDim, " = "))
		b.WriteString(f.paint(colorNote, "stack trace:"))
		b.WriteString("\n")
		for _, frame := range err.Stack {
			b.WriteString(pad)
			b.WriteString("     ")
			b.WriteString(frame.String())
			b.WriteString("\n")
		}
	}
	return b.String()
}

// FormatMultiple formats multiple errors with consistent styling.
func (f *Formatter) FormatMultiple(errs []*FormattedError) string {
	switch len(errs) {
	case 0:
		return ""
	case 1:
		return f.Format(errs[0])
	}
	var b strings.Builder
	for i, err := range errs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(f.FormatWithPrefix(err, fmt.Sprintf("%d/%d", i+1, len(errs))))
	}
	b.WriteString("\n")
	b.WriteString(f.paint(colorErrorBold, fmt.Sprintf("found %d errors", len(errs))))
	b.WriteString("\n")
	return b.String()
}

// FormatError formats any error. A *multierror.Error is expanded into its
// members; errors that are not formattable are reported by message only.
func (f *Formatter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	var list []error
	if merr, ok := err.(*multierror.Error); ok {
		list = merr.WrappedErrors()
	} else {
		list = []error{err}
	}
	formatted := make([]*FormattedError, 0, len(list))
	for _, e := range list {
		var fe FormattableError
		if As(e, &fe) {
			formatted = append(formatted, fe.ToFormatted())
			continue
		}
		formatted = append(formatted, &FormattedError{Message: e.Error()})
	}
	return f.FormatMultiple(formatted)
}
