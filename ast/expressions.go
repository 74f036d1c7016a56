package ast

import "strings"

// PathExpression is a dotted lookup such as "foo.bar", "../foo" or "@index".
type PathExpression struct {
	Span
	// Data is set for "@" paths that read from the data frame.
	Data bool
	// Depth is the number of "../" segments.
	Depth int
	// Parts are the segments left after "this", "." and ".." are removed.
	Parts []string
	// Original is the path as written, including any "@" prefix.
	Original string
}

func (e *PathExpression) exprNode() {}

func (e *PathExpression) String() string { return e.Original }

// Head returns the first segment of the path, or "" for "this".
func (e *PathExpression) Head() string {
	if len(e.Parts) == 0 {
		return ""
	}
	return e.Parts[0]
}

// Tail returns the segments after the head.
func (e *PathExpression) Tail() []string {
	if len(e.Parts) < 2 {
		return nil
	}
	return e.Parts[1:]
}

// IsScoped reports whether the path is explicitly bound to the current
// context ("./foo", "this.foo"), which rules out helper resolution.
func (e *PathExpression) IsScoped() bool {
	if strings.HasPrefix(e.Original, ".") {
		return true
	}
	idx := strings.Index(e.Original, "this")
	for idx >= 0 {
		end := idx + len("this")
		if end == len(e.Original) || !isWordByte(e.Original[end]) {
			return true
		}
		next := strings.Index(e.Original[end:], "this")
		if next < 0 {
			break
		}
		idx = end + next
	}
	return false
}

// IsSimple reports whether the path is a single unscoped identifier.
func (e *PathExpression) IsSimple() bool {
	return len(e.Parts) == 1 && !e.IsScoped() && e.Depth == 0
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// SubExpression is a parenthesized helper call used as a value.
type SubExpression struct {
	Span
	Path   Expr
	Params []Expr
	Hash   *Hash
}

func (e *SubExpression) exprNode() {}

func (e *SubExpression) String() string {
	return "(" + callString(e.Path, e.Params, e.Hash) + ")"
}
