package ast

import "strconv"

// StringLiteral is a quoted string.
type StringLiteral struct {
	Span
	Value string
}

func (e *StringLiteral) exprNode()      {}
func (e *StringLiteral) Text() string   { return e.Value }
func (e *StringLiteral) String() string { return strconv.Quote(e.Value) }

// NumberLiteral is an integer or decimal number.
type NumberLiteral struct {
	Span
	Value    float64
	Original string
}

func (e *NumberLiteral) exprNode()      {}
func (e *NumberLiteral) Text() string   { return e.Original }
func (e *NumberLiteral) String() string { return e.Original }

// IsInteger reports whether the literal was written without a fraction.
func (e *NumberLiteral) IsInteger() bool {
	_, err := strconv.Atoi(e.Original)
	return err == nil
}

// BooleanLiteral is "true" or "false".
type BooleanLiteral struct {
	Span
	Value bool
}

func (e *BooleanLiteral) exprNode()      {}
func (e *BooleanLiteral) Text() string   { return strconv.FormatBool(e.Value) }
func (e *BooleanLiteral) String() string { return e.Text() }

// UndefinedLiteral is "undefined".
type UndefinedLiteral struct {
	Span
}

func (e *UndefinedLiteral) exprNode()      {}
func (e *UndefinedLiteral) Text() string   { return "undefined" }
func (e *UndefinedLiteral) String() string { return "undefined" }

// NullLiteral is "null".
type NullLiteral struct {
	Span
}

func (e *NullLiteral) exprNode()      {}
func (e *NullLiteral) Text() string   { return "null" }
func (e *NullLiteral) String() string { return "null" }
