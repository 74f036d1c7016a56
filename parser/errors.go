package parser

import (
	"fmt"
	"strings"

	"github.com/deepnoodle-ai/hbs/errors"
	"github.com/deepnoodle-ai/hbs/internal/lexer"
	"github.com/deepnoodle-ai/hbs/internal/token"
)

// errorf builds a CompileError located at tok.
func (p *Parser) errorf(code errors.ErrorCode, tok token.Token, format string, args ...any) *errors.CompileError {
	return p.errorAt(code, tok.StartPosition, fmt.Sprintf(format, args...))
}

func (p *Parser) errorAt(code errors.ErrorCode, pos token.Position, msg string) *errors.CompileError {
	return &errors.CompileError{
		Code:       code,
		Message:    msg,
		Filename:   p.filename,
		Line:       pos.LineNumber(),
		Column:     pos.ColumnNumber(),
		SourceLine: errors.SourceLineAt(p.l.Input(), pos.LineNumber()),
	}
}

func (p *Parser) unexpected(tok token.Token, want token.Type) *errors.CompileError {
	got := string(tok.Type)
	if tok.Literal != "" && tok.Type != token.CONTENT {
		got = fmt.Sprintf("%s %q", tok.Type, tok.Literal)
	}
	return p.errorf(errors.E1001, tok, "Parse error: expecting %s, got %s", want, got)
}

func (p *Parser) lexError(err error) error {
	lerr, ok := err.(*lexer.Error)
	if !ok {
		return err
	}
	code := errors.E1003
	switch {
	case strings.HasPrefix(lerr.Message, "unterminated string"):
		code = errors.E1002
	case strings.HasPrefix(lerr.Message, "unterminated"):
		code = errors.E1007
	}
	return p.errorAt(code, lerr.Position, "Parse error: "+lerr.Message)
}
