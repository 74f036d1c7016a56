// Package ast defines the abstract syntax tree of a Handlebars template.
package ast

import "github.com/deepnoodle-ai/hbs/internal/token"

// Node represents a portion of the syntax tree. All nodes have position
// information indicating where they appear in the source.
type Node interface {
	// Pos returns the position of the first character belonging to the node.
	Pos() token.Position

	// End returns the position of the first character immediately after the node.
	End() token.Position

	// String returns a human friendly representation of the Node. This should
	// be similar to the original source, but not necessarily identical.
	String() string
}

// Stmt represents a statement node: an item in the body of a Program.
type Stmt interface {
	Node
	stmtNode()
}

// Expr represents an expression node: a path, a literal or a sub-expression.
type Expr interface {
	Node
	exprNode()
}

// Literal is an expression with a fixed value.
type Literal interface {
	Expr
	// Text returns the literal as it was written in the source.
	Text() string
}

// Span records where a node appears in the source.
type Span struct {
	From token.Position
	To   token.Position
}

func (s Span) Pos() token.Position { return s.From }
func (s Span) End() token.Position { return s.To }

// StripFlags record the "~" whitespace control markers of a mustache.
type StripFlags struct {
	Open  bool // "{{~"
	Close bool // "~}}"
}

// Program is a sequence of statements: a template or the body of a block.
type Program struct {
	Span
	Body        []Stmt
	BlockParams []string
	// Chained is set on the synthetic program wrapping an "else if" block.
	Chained bool
}

func (p *Program) String() string {
	var out []byte
	for _, stmt := range p.Body {
		out = append(out, stmt.String()...)
	}
	return string(out)
}

// Hash is a set of key=value pairs passed to a helper.
type Hash struct {
	Span
	Pairs []*HashPair
}

func (h *Hash) String() string {
	var out []byte
	for i, pair := range h.Pairs {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, pair.String()...)
	}
	return string(out)
}

// HashPair is a single key=value pair of a Hash.
type HashPair struct {
	Span
	Key   string
	Value Expr
}

func (p *HashPair) String() string {
	return p.Key + "=" + p.Value.String()
}
