// Package token defines the tokens produced when lexing template source.
package token

// Type describes the type of a token as a string.
type Type string

// Position points to a particular location in an input string.
type Position struct {
	Char      int    // byte offset within the file
	LineStart int    // byte offset of the start of the current line
	Line      int    // 0-indexed line number
	Column    int    // 0-indexed column number
	File      string // filename
}

// LineNumber returns the 1-indexed line number for this position in the input.
func (p Position) LineNumber() int {
	return p.Line + 1
}

// ColumnNumber returns the 1-indexed column number for this position in the input.
func (p Position) ColumnNumber() int {
	return p.Column + 1
}

// IsValid returns true if this position has been set.
func (p Position) IsValid() bool {
	return p.File != "" || p.Line > 0 || p.Column > 0 || p.Char > 0
}

// NoPos is the zero value Position, representing an invalid/unset position.
var NoPos = Position{}

// Token represents one token lexed from the input source.
type Token struct {
	Type          Type
	Literal       string
	StartPosition Position
	EndPosition   Position
}

// Token types
const (
	CONTENT            Type = "CONTENT"
	COMMENT            Type = "COMMENT"
	OPEN               Type = "OPEN"               // {{ {{& {{*
	OPEN_UNESCAPED     Type = "OPEN_UNESCAPED"     // {{{
	CLOSE_UNESCAPED    Type = "CLOSE_UNESCAPED"    // }}}
	OPEN_BLOCK         Type = "OPEN_BLOCK"         // {{# {{#*
	OPEN_PARTIAL       Type = "OPEN_PARTIAL"       // {{>
	OPEN_PARTIAL_BLOCK Type = "OPEN_PARTIAL_BLOCK" // {{#>
	OPEN_ENDBLOCK      Type = "OPEN_ENDBLOCK"      // {{/
	OPEN_INVERSE       Type = "OPEN_INVERSE"       // {{^
	OPEN_INVERSE_CHAIN Type = "OPEN_INVERSE_CHAIN" // {{else
	INVERSE            Type = "INVERSE"            // {{^}} {{else}}
	OPEN_RAW_BLOCK     Type = "OPEN_RAW_BLOCK"     // {{{{
	CLOSE_RAW_BLOCK    Type = "CLOSE_RAW_BLOCK"    // }}}}
	END_RAW_BLOCK      Type = "END_RAW_BLOCK"      // {{{{/name}}}}
	CLOSE              Type = "CLOSE"              // }}
	OPEN_SEXPR         Type = "("
	CLOSE_SEXPR        Type = ")"
	OPEN_BLOCK_PARAMS  Type = "as |"
	CLOSE_BLOCK_PARAMS Type = "|"
	EQUALS             Type = "="
	DATA               Type = "@"
	SEP                Type = "SEP"
	ID                 Type = "ID"
	STRING             Type = "STRING"
	NUMBER             Type = "NUMBER"
	BOOLEAN            Type = "BOOLEAN"
	UNDEFINED          Type = "UNDEFINED"
	NULL               Type = "NULL"
	INVALID            Type = "INVALID"
	EOF                Type = "EOF"
)

var literals = map[string]Type{
	"true":      BOOLEAN,
	"false":     BOOLEAN,
	"undefined": UNDEFINED,
	"null":      NULL,
}

// LookupLiteral reports whether word is a keyword literal and returns its type.
func LookupLiteral(word string) (Type, bool) {
	t, ok := literals[word]
	return t, ok
}

// IsOpen returns true for token types that open a mustache.
func (t Type) IsOpen() bool {
	switch t {
	case OPEN, OPEN_UNESCAPED, OPEN_BLOCK, OPEN_PARTIAL, OPEN_PARTIAL_BLOCK,
		OPEN_ENDBLOCK, OPEN_INVERSE, OPEN_INVERSE_CHAIN, OPEN_RAW_BLOCK:
		return true
	}
	return false
}
