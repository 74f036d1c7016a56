// Package errors defines the compile and render errors reported by the
// template engine, along with a formatter for human friendly reports.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// SourceLocation represents a position in template source.
type SourceLocation struct {
	Filename string
	Line     int    // 1-based line number
	Column   int    // 1-based column number
	Source   string // The line of source text
}

// String returns a formatted string representation of the source location.
func (s SourceLocation) String() string {
	if s.Filename != "" {
		return fmt.Sprintf("%s:%d:%d", s.Filename, s.Line, s.Column)
	}
	return fmt.Sprintf("%d:%d", s.Line, s.Column)
}

// IsZero returns true if the location has not been set.
func (s SourceLocation) IsZero() bool {
	return s.Line == 0 && s.Column == 0
}

// StackFrame names one partial or helper invocation an error passed through.
type StackFrame struct {
	Function string
	Location SourceLocation
}

// String returns a formatted string representation of the stack frame.
func (f StackFrame) String() string {
	if f.Location.IsZero() {
		return "at " + f.Function
	}
	return fmt.Sprintf("at %s (%s)", f.Function, f.Location.String())
}

// FormatStackTrace formats a slice of stack frames as a human-readable string.
func FormatStackTrace(frames []StackFrame) string {
	if len(frames) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Stack trace:\n")
	for _, frame := range frames {
		b.WriteString("  ")
		b.WriteString(frame.String())
		b.WriteString("\n")
	}
	return b.String()
}

// FriendlyError is an interface for errors that have a human friendly message
// in addition to a the lower level default error message.
type FriendlyError interface {
	Error() string
	FriendlyErrorMessage() string
}

// FormattableError is an interface for errors that can be formatted with
// the enhanced error formatter (with colors, source context, etc).
type FormattableError interface {
	Error() string
	ToFormatted() *FormattedError
}

// RenderError is an error raised while executing a template. Render errors
// are always fatal: rendering stops and no partial output is returned.
type RenderError struct {
	Code     ErrorCode
	Message  string
	Location SourceLocation
	Stack    []StackFrame
	Hint     string
	Err      error
}

func (e *RenderError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Location.IsZero() {
		return msg
	}
	return fmt.Sprintf("%s (%s)", msg, e.Location.String())
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

func (e *RenderError) IsFatal() bool {
	return true
}

// FriendlyErrorMessage returns a human-friendly error message.
func (e *RenderError) FriendlyErrorMessage() string {
	return NewFormatter(false).Format(e.ToFormatted())
}

// ToFormatted converts to the FormattedError type for display.
func (e *RenderError) ToFormatted() *FormattedError {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	fe := &FormattedError{
		Code:     e.Code,
		Kind:     "render error",
		Message:  msg,
		Filename: e.Location.Filename,
		Line:     e.Location.Line,
		Column:   e.Location.Column,
		Hint:     e.Hint,
		Stack:    e.Stack,
	}
	if e.Location.Source != "" {
		fe.SourceLines = []SourceLineEntry{
			{Number: e.Location.Line, Text: e.Location.Source, IsMain: true},
		}
	}
	return fe
}

// WithFrame records that the error passed through the named invocation.
func (e *RenderError) WithFrame(function string, loc SourceLocation) *RenderError {
	e.Stack = append(e.Stack, StackFrame{Function: function, Location: loc})
	return e
}

// NewRenderError wraps err as a RenderError. An error that already is a
// RenderError is returned unchanged.
func NewRenderError(code ErrorCode, err error) *RenderError {
	var re *RenderError
	if errors.As(err, &re) {
		return re
	}
	return &RenderError{Code: code, Err: err}
}

// RenderErrorf creates a RenderError with a formatted message.
func RenderErrorf(code ErrorCode, format string, args ...any) *RenderError {
	return &RenderError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// As is a convenience wrapper around the standard library errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is is a convenience wrapper around the standard library errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
