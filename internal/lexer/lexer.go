// Package lexer splits template source into tokens.
//
// The lexer has three states. Outside of mustaches it produces CONTENT
// tokens; between "{{" and "}}" it produces the tokens of a mustache
// expression; inside a raw block it produces a single CONTENT token
// running up to the matching "{{{{/name}}}}".
package lexer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/deepnoodle-ai/hbs/internal/token"
)

type state int

const (
	stateContent state = iota
	stateMustache
	stateEmu
	stateRaw
)

var (
	reInverse     = regexp.MustCompile(`^\{\{~?\^\s*~?\}\}`)
	reElse        = regexp.MustCompile(`^\{\{~?\s*else\s*~?\}\}`)
	reElseChain   = regexp.MustCompile(`^\{\{~?\s*else`)
	reLongComment = regexp.MustCompile(`^\{\{~?!--[\s\S]*?--~?\}\}`)
	reComment     = regexp.MustCompile(`^\{\{~?![\s\S]*?\}\}`)
	reNumber      = regexp.MustCompile(`^-?[0-9]+(?:\.[0-9]+)?`)
	reID          = regexp.MustCompile("^[^\\s!\"#%-,\\./;->@\\[-\\^`\\{-~]+")
	reBlockParams = regexp.MustCompile(`^as\s+\|`)
	reRawEnd      = regexp.MustCompile("^\\{\\{\\{\\{/([^\\s!\"#%-,\\./;->@\\[-\\^`\\{-~]+)\\}\\}\\}\\}")
)

// Lexer converts template source into a stream of tokens.
type Lexer struct {
	input     string
	file      string
	pos       int
	line      int
	lineStart int
	state     state
	rawOpen   bool
}

// Option configures a Lexer.
type Option func(*Lexer)

// WithFile sets the filename recorded on token positions.
func WithFile(file string) Option {
	return func(l *Lexer) {
		l.file = file
	}
}

// New returns a Lexer for the given input.
func New(input string, opts ...Option) *Lexer {
	l := &Lexer{input: input}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Input returns the source being lexed.
func (l *Lexer) Input() string {
	return l.input
}

// Filename returns the filename associated with the input, if any.
func (l *Lexer) Filename() string {
	return l.file
}

// Position returns the current position of the lexer.
func (l *Lexer) Position() token.Position {
	return token.Position{
		Char:      l.pos,
		LineStart: l.lineStart,
		Line:      l.line,
		Column:    l.pos - l.lineStart,
		File:      l.file,
	}
}

// Next returns the next token. An EOF token is returned once the input
// is exhausted; subsequent calls keep returning EOF.
func (l *Lexer) Next() (token.Token, error) {
	if l.pos >= len(l.input) {
		if l.state == stateRaw {
			return token.Token{}, l.errorf("unterminated raw block")
		}
		return l.emit(token.EOF, "", 0), nil
	}
	switch l.state {
	case stateEmu:
		return l.lexEmu(), nil
	case stateRaw:
		return l.lexRaw()
	case stateMustache:
		return l.lexMustache()
	default:
		return l.lexContent()
	}
}

// Tokens lexes the whole input, returning every token up to and including EOF.
func (l *Lexer) Tokens() ([]token.Token, error) {
	var tokens []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Type == token.EOF {
			return tokens, nil
		}
	}
}

func (l *Lexer) lexContent() (token.Token, error) {
	rest := l.input[l.pos:]
	idx := strings.Index(rest, "{{")
	if idx < 0 {
		return l.emit(token.CONTENT, rest, len(rest)), nil
	}
	text := rest[:idx]
	switch {
	case strings.HasSuffix(text, `\\`):
		// "\\{{" is a literal backslash followed by a real mustache
		l.state = stateMustache
		return l.emit(token.CONTENT, text[:len(text)-1], idx), nil
	case strings.HasSuffix(text, `\`):
		l.state = stateEmu
		if idx == 1 {
			l.advance(1)
			return l.lexEmu(), nil
		}
		return l.emit(token.CONTENT, text[:len(text)-1], idx), nil
	}
	l.state = stateMustache
	if idx == 0 {
		return l.lexMustache()
	}
	return l.emit(token.CONTENT, text, idx), nil
}

// lexEmu emits an escaped mustache as plain content. The content runs up to
// the next mustache (escaped or not) or the end of input.
func (l *Lexer) lexEmu() token.Token {
	l.state = stateContent
	rest := l.input[l.pos:]
	end := len(rest)
	if k := strings.Index(rest[2:], "{{"); k >= 0 {
		end = k + 2
		if end-2 >= 2 && rest[end-2:end] == `\\` {
			end -= 2
		} else if end-1 >= 2 && rest[end-1] == '\\' {
			end--
		}
	}
	return l.emit(token.CONTENT, rest[:end], end)
}

func (l *Lexer) lexRaw() (token.Token, error) {
	rest := l.input[l.pos:]
	depth := 0
	offset := 0
	for {
		k := strings.Index(rest[offset:], "{{{{")
		if k < 0 {
			return token.Token{}, l.errorf("unterminated raw block")
		}
		at := offset + k
		if m := reRawEnd.FindStringSubmatch(rest[at:]); m != nil {
			if depth == 0 {
				if at > 0 {
					return l.emit(token.CONTENT, rest[:at], at), nil
				}
				l.state = stateContent
				return l.emit(token.END_RAW_BLOCK, m[1], len(m[0])), nil
			}
			depth--
			offset = at + len(m[0])
			continue
		}
		if !strings.HasPrefix(rest[at:], "{{{{/") {
			depth++
		}
		offset = at + 4
	}
}

func (l *Lexer) lexMustache() (token.Token, error) {
	l.skipWhitespace()
	if l.pos >= len(l.input) {
		return l.emit(token.EOF, "", 0), nil
	}
	rest := l.input[l.pos:]
	if strings.HasPrefix(rest, "{{") {
		return l.lexOpen(rest)
	}
	switch {
	case rest[0] == '(':
		return l.emit(token.OPEN_SEXPR, "(", 1), nil
	case rest[0] == ')':
		return l.emit(token.CLOSE_SEXPR, ")", 1), nil
	case l.rawOpen && strings.HasPrefix(rest, "}}}}"):
		l.rawOpen = false
		l.state = stateRaw
		return l.emit(token.CLOSE_RAW_BLOCK, "}}}}", 4), nil
	case strings.HasPrefix(rest, "}~}}"):
		l.state = stateContent
		return l.emit(token.CLOSE_UNESCAPED, "}~}}", 4), nil
	case strings.HasPrefix(rest, "}}}"):
		l.state = stateContent
		return l.emit(token.CLOSE_UNESCAPED, "}}}", 3), nil
	case strings.HasPrefix(rest, "~}}"):
		l.state = stateContent
		return l.emit(token.CLOSE, "~}}", 3), nil
	case strings.HasPrefix(rest, "}}"):
		l.state = stateContent
		return l.emit(token.CLOSE, "}}", 2), nil
	case rest[0] == '=':
		return l.emit(token.EQUALS, "=", 1), nil
	case strings.HasPrefix(rest, ".."):
		if lookahead(rest, 2) {
			return l.emit(token.ID, "..", 2), nil
		}
	case rest[0] == '.' && lookahead(rest, 1):
		return l.emit(token.ID, ".", 1), nil
	case rest[0] == '"' || rest[0] == '\'':
		return l.lexString(rest)
	case rest[0] == '@':
		return l.emit(token.DATA, "@", 1), nil
	case rest[0] == '[':
		return l.lexLiteralSegment(rest)
	case rest[0] == '|':
		return l.emit(token.CLOSE_BLOCK_PARAMS, "|", 1), nil
	}
	if rest[0] == '.' || rest[0] == '/' {
		return l.emit(token.SEP, rest[:1], 1), nil
	}
	if m := reBlockParams.FindString(rest); m != "" {
		return l.emit(token.OPEN_BLOCK_PARAMS, m, len(m)), nil
	}
	if m := reNumber.FindString(rest); m != "" && literalLookahead(rest, len(m)) {
		return l.emit(token.NUMBER, m, len(m)), nil
	}
	if m := reID.FindString(rest); m != "" {
		if typ, ok := token.LookupLiteral(m); ok && literalLookahead(rest, len(m)) {
			return l.emit(typ, m, len(m)), nil
		}
		if lookahead(rest, len(m)) {
			return l.emit(token.ID, m, len(m)), nil
		}
	}
	return token.Token{}, l.errorf("invalid token %q", string(rest[0]))
}

func (l *Lexer) lexOpen(rest string) (token.Token, error) {
	if strings.HasPrefix(rest, "{{{{") {
		l.rawOpen = true
		return l.emit(token.OPEN_RAW_BLOCK, "{{{{", 4), nil
	}
	if m := reLongComment.FindString(rest); m != "" {
		l.state = stateContent
		return l.emit(token.COMMENT, m, len(m)), nil
	}
	if m := reInverse.FindString(rest); m != "" {
		l.state = stateContent
		return l.emit(token.INVERSE, m, len(m)), nil
	}
	if m := reElse.FindString(rest); m != "" {
		l.state = stateContent
		return l.emit(token.INVERSE, m, len(m)), nil
	}
	i := 2
	if len(rest) > i && rest[i] == '~' {
		i++
	}
	body := rest[i:]
	switch {
	case strings.HasPrefix(body, "!--"):
		return token.Token{}, l.errorf("unterminated comment")
	case strings.HasPrefix(body, "!"):
		m := reComment.FindString(rest)
		if m == "" {
			return token.Token{}, l.errorf("unterminated comment")
		}
		l.state = stateContent
		return l.emit(token.COMMENT, m, len(m)), nil
	case strings.HasPrefix(body, ">"):
		return l.emit(token.OPEN_PARTIAL, rest[:i+1], i+1), nil
	case strings.HasPrefix(body, "#>"):
		return l.emit(token.OPEN_PARTIAL_BLOCK, rest[:i+2], i+2), nil
	case strings.HasPrefix(body, "#*"):
		return l.emit(token.OPEN_BLOCK, rest[:i+2], i+2), nil
	case strings.HasPrefix(body, "#"):
		return l.emit(token.OPEN_BLOCK, rest[:i+1], i+1), nil
	case strings.HasPrefix(body, "/"):
		return l.emit(token.OPEN_ENDBLOCK, rest[:i+1], i+1), nil
	case strings.HasPrefix(body, "^"):
		return l.emit(token.OPEN_INVERSE, rest[:i+1], i+1), nil
	case strings.HasPrefix(body, "{"):
		return l.emit(token.OPEN_UNESCAPED, rest[:i+1], i+1), nil
	case strings.HasPrefix(body, "&"), strings.HasPrefix(body, "*"):
		return l.emit(token.OPEN, rest[:i+1], i+1), nil
	}
	if m := reElseChain.FindString(rest); m != "" && len(rest) > len(m) && isSpace(rest[len(m)]) {
		return l.emit(token.OPEN_INVERSE_CHAIN, m, len(m)), nil
	}
	return l.emit(token.OPEN, rest[:i], i), nil
}

func (l *Lexer) lexString(rest string) (token.Token, error) {
	quote := rest[0]
	var b strings.Builder
	for i := 1; i < len(rest); i++ {
		c := rest[i]
		if c == '\\' && i+1 < len(rest) && rest[i+1] == quote {
			b.WriteByte(quote)
			i++
			continue
		}
		if c == quote {
			return l.emit(token.STRING, b.String(), i+1), nil
		}
		b.WriteByte(c)
	}
	return token.Token{}, l.errorf("unterminated string literal")
}

func (l *Lexer) lexLiteralSegment(rest string) (token.Token, error) {
	var b strings.Builder
	b.WriteByte('[')
	for i := 1; i < len(rest); i++ {
		c := rest[i]
		if c == '\\' && i+1 < len(rest) && (rest[i+1] == ']' || rest[i+1] == '\\') {
			b.WriteByte(rest[i+1])
			i++
			continue
		}
		if c == ']' {
			b.WriteByte(']')
			return l.emit(token.ID, b.String(), i+1), nil
		}
		b.WriteByte(c)
	}
	return token.Token{}, l.errorf("unterminated path segment")
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && isSpace(l.input[l.pos]) {
		l.advance(1)
	}
}

// emit builds a token with the given literal and consumes n bytes of input.
func (l *Lexer) emit(typ token.Type, literal string, n int) token.Token {
	start := l.Position()
	l.advance(n)
	return token.Token{
		Type:          typ,
		Literal:       literal,
		StartPosition: start,
		EndPosition:   l.Position(),
	}
}

func (l *Lexer) advance(n int) {
	for i := 0; i < n && l.pos < len(l.input); i++ {
		if l.input[l.pos] == '\n' {
			l.line++
			l.lineStart = l.pos + 1
		}
		l.pos++
	}
}

// Error is returned for input that cannot be tokenized.
type Error struct {
	Message  string
	Position token.Position
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (line %d, column %d)", e.Message, e.Position.LineNumber(), e.Position.ColumnNumber())
}

func (l *Lexer) errorf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), Position: l.Position()}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

// lookahead reports whether the byte at i may follow an identifier.
func lookahead(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	return strings.IndexByte("=~}/.)|", s[i]) >= 0 || isSpace(s[i])
}

// literalLookahead reports whether the byte at i may follow a literal.
func literalLookahead(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	return strings.IndexByte("~})", s[i]) >= 0 || isSpace(s[i])
}
