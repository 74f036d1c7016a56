// Package parser builds the abstract syntax tree for a template.
//
// A parser is created by calling New() with a lexer as input. The parser should
// then be used only once, by calling parser.Parse() to produce the AST.
package parser

import (
	"context"
	"strconv"
	"strings"

	"github.com/deepnoodle-ai/hbs/ast"
	"github.com/deepnoodle-ai/hbs/errors"
	"github.com/deepnoodle-ai/hbs/internal/lexer"
	"github.com/deepnoodle-ai/hbs/internal/token"
)

// DefaultMaxDepth is the default maximum block nesting depth.
const DefaultMaxDepth = 500

// Parse the provided input as template source and return the AST. This is
// shorthand way to create a Lexer and Parser and then call Parse on that.
func Parse(ctx context.Context, input string, options ...Option) (*ast.Program, error) {
	var opts Parser
	for _, opt := range options {
		opt(&opts)
	}
	l := lexer.New(input, lexer.WithFile(opts.filename))
	return New(l, options...).Parse(ctx)
}

// Option is a configuration function for a Parser.
type Option func(*Parser)

// WithFilename sets the file name reported in errors.
func WithFilename(filename string) Option {
	return func(p *Parser) {
		p.filename = filename
	}
}

// WithMaxDepth sets the maximum nesting depth for blocks and sub-expressions.
func WithMaxDepth(depth int) Option {
	return func(p *Parser) {
		p.maxDepth = depth
	}
}

// Parser turns a token stream into an AST.
type Parser struct {
	ctx      context.Context
	l        *lexer.Lexer
	cur      token.Token
	peek     token.Token
	filename string
	depth    int
	maxDepth int
}

// New returns a Parser reading tokens from l.
func New(l *lexer.Lexer, options ...Option) *Parser {
	p := &Parser{l: l, maxDepth: DefaultMaxDepth, filename: l.Filename()}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Parse the template and return the root Program.
func (p *Parser) Parse(ctx context.Context) (*ast.Program, error) {
	p.ctx = ctx
	if err := p.next(); err != nil {
		return nil, err
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	prog, err := p.parseProgram()
	if err != nil {
		return nil, err
	}
	if p.cur.Type != token.EOF {
		return nil, p.unexpected(p.cur, token.EOF)
	}
	return prog, nil
}

func (p *Parser) next() error {
	p.cur = p.peek
	if p.cur.Type == token.EOF {
		return nil
	}
	tok, err := p.l.Next()
	if err != nil {
		return p.lexError(err)
	}
	p.peek = tok
	return nil
}

func (p *Parser) expect(typ token.Type) (token.Token, error) {
	tok := p.cur
	if tok.Type != typ {
		return tok, p.unexpected(tok, typ)
	}
	return tok, p.next()
}

func (p *Parser) enter() error {
	p.depth++
	if p.depth > p.maxDepth {
		return p.errorf(errors.E1006, p.cur, "maximum nesting depth exceeded")
	}
	return nil
}

func (p *Parser) leave() { p.depth-- }

func programEnds(typ token.Type) bool {
	switch typ {
	case token.EOF, token.INVERSE, token.OPEN_INVERSE_CHAIN, token.OPEN_ENDBLOCK:
		return true
	}
	return false
}

func (p *Parser) parseProgram() (*ast.Program, error) {
	prog := &ast.Program{Span: ast.Span{From: p.cur.StartPosition, To: p.cur.StartPosition}}
	for !programEnds(p.cur.Type) {
		if err := p.ctx.Err(); err != nil {
			return nil, err
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		prog.Body = append(prog.Body, stmt)
	}
	if n := len(prog.Body); n > 0 {
		prog.From = prog.Body[0].Pos()
		prog.To = prog.Body[n-1].End()
	}
	return prog, nil
}

func (p *Parser) parseStatement() (ast.Stmt, error) {
	tok := p.cur
	switch tok.Type {
	case token.CONTENT:
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.ContentStatement{
			Span:     span(tok, tok),
			Value:    tok.Literal,
			Original: tok.Literal,
		}, nil
	case token.COMMENT:
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.CommentStatement{
			Span:  span(tok, tok),
			Value: stripComment(tok.Literal),
			Strip: stripFlags(tok.Literal, tok.Literal),
		}, nil
	case token.OPEN, token.OPEN_UNESCAPED:
		return p.parseMustache()
	case token.OPEN_BLOCK, token.OPEN_INVERSE:
		return p.parseBlock()
	case token.OPEN_RAW_BLOCK:
		return p.parseRawBlock()
	case token.OPEN_PARTIAL:
		return p.parsePartial()
	case token.OPEN_PARTIAL_BLOCK:
		return p.parsePartialBlock()
	}
	return nil, p.unexpected(tok, token.CONTENT)
}

// call is the parsed interior of a mustache: "name params hash as |x y|".
type call struct {
	open        token.Token
	path        ast.Expr
	params      []ast.Expr
	hash        *ast.Hash
	blockParams []string
	strip       ast.StripFlags
	end         token.Token
}

// parseCall parses an opening tag through its close token.
func (p *Parser) parseCall(closeType token.Type, allowBlockParams bool) (*call, error) {
	c := &call{open: p.cur}
	if err := p.next(); err != nil {
		return nil, err
	}
	var err error
	if c.open.Type == token.OPEN_PARTIAL || c.open.Type == token.OPEN_PARTIAL_BLOCK {
		c.path, err = p.parsePartialName()
	} else {
		c.path, err = p.parseHelperName()
	}
	if err != nil {
		return nil, err
	}
	if c.params, c.hash, err = p.parseArguments(); err != nil {
		return nil, err
	}
	if allowBlockParams && p.cur.Type == token.OPEN_BLOCK_PARAMS {
		if c.blockParams, err = p.parseBlockParams(); err != nil {
			return nil, err
		}
	}
	c.end = p.cur
	if _, err := p.expect(closeType); err != nil {
		return nil, err
	}
	c.strip = stripFlags(c.open.Literal, c.end.Literal)
	return c, nil
}

// parseArguments parses positional params followed by an optional hash.
func (p *Parser) parseArguments() ([]ast.Expr, *ast.Hash, error) {
	var params []ast.Expr
	for p.startsParam() && !p.startsHashPair() {
		param, err := p.parseParam()
		if err != nil {
			return nil, nil, err
		}
		params = append(params, param)
	}
	if !p.startsHashPair() {
		return params, nil, nil
	}
	hash := &ast.Hash{Span: ast.Span{From: p.cur.StartPosition}}
	for p.startsHashPair() {
		key := p.cur
		if err := p.next(); err != nil {
			return nil, nil, err
		}
		if _, err := p.expect(token.EQUALS); err != nil {
			return nil, nil, err
		}
		value, err := p.parseParam()
		if err != nil {
			return nil, nil, err
		}
		hash.Pairs = append(hash.Pairs, &ast.HashPair{
			Span:  ast.Span{From: key.StartPosition, To: value.End()},
			Key:   id(key.Literal),
			Value: value,
		})
		hash.To = value.End()
	}
	return params, hash, nil
}

func (p *Parser) startsHashPair() bool {
	return p.cur.Type == token.ID && p.peek.Type == token.EQUALS
}

func (p *Parser) startsParam() bool {
	switch p.cur.Type {
	case token.ID, token.DATA, token.STRING, token.NUMBER, token.BOOLEAN,
		token.UNDEFINED, token.NULL, token.OPEN_SEXPR:
		return true
	}
	return false
}

func (p *Parser) parseParam() (ast.Expr, error) {
	if p.cur.Type == token.OPEN_SEXPR {
		return p.parseSexpr()
	}
	return p.parseHelperName()
}

func (p *Parser) parsePartialName() (ast.Expr, error) {
	if p.cur.Type == token.OPEN_SEXPR {
		return p.parseSexpr()
	}
	return p.parseHelperName()
}

func (p *Parser) parseSexpr() (ast.Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	open := p.cur
	if err := p.next(); err != nil {
		return nil, err
	}
	path, err := p.parseHelperName()
	if err != nil {
		return nil, err
	}
	params, hash, err := p.parseArguments()
	if err != nil {
		return nil, err
	}
	closeTok, err := p.expect(token.CLOSE_SEXPR)
	if err != nil {
		return nil, err
	}
	return &ast.SubExpression{
		Span:   span(open, closeTok),
		Path:   path,
		Params: params,
		Hash:   hash,
	}, nil
}

func (p *Parser) parseHelperName() (ast.Expr, error) {
	tok := p.cur
	sp := span(tok, tok)
	switch tok.Type {
	case token.ID:
		return p.parsePath(false, tok)
	case token.DATA:
		if err := p.next(); err != nil {
			return nil, err
		}
		return p.parsePath(true, tok)
	case token.STRING:
		return &ast.StringLiteral{Span: sp, Value: tok.Literal}, p.next()
	case token.NUMBER:
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return nil, p.errorf(errors.E1003, tok, "invalid number %q", tok.Literal)
		}
		return &ast.NumberLiteral{Span: sp, Value: f, Original: tok.Literal}, p.next()
	case token.BOOLEAN:
		return &ast.BooleanLiteral{Span: sp, Value: tok.Literal == "true"}, p.next()
	case token.UNDEFINED:
		return &ast.UndefinedLiteral{Span: sp}, p.next()
	case token.NULL:
		return &ast.NullLiteral{Span: sp}, p.next()
	}
	return nil, p.unexpected(tok, token.ID)
}

// parsePath parses "seg(/seg)*" and resolves "this", "." and ".." segments.
func (p *Parser) parsePath(data bool, start token.Token) (ast.Expr, error) {
	path := &ast.PathExpression{Data: data}
	var original strings.Builder
	if data {
		original.WriteByte('@')
	}
	sep := ""
	last := p.cur
	for {
		tok, err := p.expect(token.ID)
		if err != nil {
			return nil, err
		}
		last = tok
		part := id(tok.Literal)
		literal := part != tok.Literal
		original.WriteString(sep)
		original.WriteString(part)
		if !literal && (part == ".." || part == "." || part == "this") {
			if len(path.Parts) > 0 {
				return nil, p.errorf(errors.E1005, start, "Invalid path: %s", original.String())
			}
			if part == ".." {
				path.Depth++
			}
		} else {
			path.Parts = append(path.Parts, part)
		}
		if p.cur.Type != token.SEP {
			break
		}
		sep = p.cur.Literal
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	path.Original = original.String()
	path.Span = span(start, last)
	return path, nil
}

func (p *Parser) parseBlockParams() ([]string, error) {
	if err := p.next(); err != nil {
		return nil, err
	}
	var names []string
	for p.cur.Type == token.ID {
		names = append(names, id(p.cur.Literal))
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	if len(names) == 0 {
		return nil, p.unexpected(p.cur, token.ID)
	}
	if _, err := p.expect(token.CLOSE_BLOCK_PARAMS); err != nil {
		return nil, err
	}
	return names, nil
}

func (p *Parser) parseMustache() (ast.Stmt, error) {
	closeType := token.CLOSE
	if p.cur.Type == token.OPEN_UNESCAPED {
		closeType = token.CLOSE_UNESCAPED
	}
	c, err := p.parseCall(closeType, false)
	if err != nil {
		return nil, err
	}
	sp := span(c.open, c.end)
	if strings.Contains(c.open.Literal, "*") {
		return &ast.Decorator{Span: sp, Path: c.path, Params: c.params, Hash: c.hash, Strip: c.strip}, nil
	}
	flag := strings.TrimPrefix(strings.TrimPrefix(c.open.Literal, "{{"), "~")
	escaped := !strings.HasPrefix(flag, "{") && !strings.HasPrefix(flag, "&")
	return &ast.MustacheStatement{
		Span:    sp,
		Path:    c.path,
		Params:  c.params,
		Hash:    c.hash,
		Escaped: escaped,
		Strip:   c.strip,
	}, nil
}

func (p *Parser) parsePartial() (ast.Stmt, error) {
	c, err := p.parseCall(token.CLOSE, false)
	if err != nil {
		return nil, err
	}
	return &ast.PartialStatement{
		Span:   span(c.open, c.end),
		Name:   c.path,
		Params: c.params,
		Hash:   c.hash,
		Strip:  c.strip,
	}, nil
}

// inverseAndProgram is the "{{else}}..." tail of a block.
type inverseAndProgram struct {
	strip   ast.StripFlags
	program *ast.Program
	chain   bool
}

func (p *Parser) parseBlock() (ast.Stmt, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	inverted := p.cur.Type == token.OPEN_INVERSE
	open, err := p.parseCall(token.CLOSE, true)
	if err != nil {
		return nil, err
	}
	program, err := p.parseProgram()
	if err != nil {
		return nil, err
	}
	inverse, err := p.parseInverse()
	if err != nil {
		return nil, err
	}
	closePath, closeStrip, closeTok, err := p.parseCloseBlock()
	if err != nil {
		return nil, err
	}
	if err := p.validateClose(open, exprOriginal(closePath)); err != nil {
		return nil, err
	}
	if inverse != nil && inverse.chain {
		setChainCloseStrip(inverse.program, closeStrip)
	}
	return p.prepareBlock(open, program, inverse, closeStrip, inverted, span(open.open, closeTok))
}

// parseInverse parses an optional "{{else}}" or "{{else if ...}}" tail.
func (p *Parser) parseInverse() (*inverseAndProgram, error) {
	switch p.cur.Type {
	case token.INVERSE:
		tok := p.cur
		if err := p.next(); err != nil {
			return nil, err
		}
		program, err := p.parseProgram()
		if err != nil {
			return nil, err
		}
		return &inverseAndProgram{strip: stripFlags(tok.Literal, tok.Literal), program: program}, nil
	case token.OPEN_INVERSE_CHAIN:
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		open, err := p.parseCall(token.CLOSE, true)
		if err != nil {
			return nil, err
		}
		program, err := p.parseProgram()
		if err != nil {
			return nil, err
		}
		next, err := p.parseInverse()
		if err != nil {
			return nil, err
		}
		var closeStrip ast.StripFlags
		if next != nil {
			closeStrip = next.strip
		}
		block, err := p.prepareBlock(open, program, next, closeStrip, false, ast.Span{From: open.open.StartPosition, To: p.cur.StartPosition})
		if err != nil {
			return nil, err
		}
		chained := &ast.Program{
			Span:    ast.Span{From: block.Pos(), To: block.End()},
			Body:    []ast.Stmt{block},
			Chained: true,
		}
		return &inverseAndProgram{strip: open.strip, program: chained, chain: true}, nil
	}
	return nil, nil
}

// parseCloseBlock parses "{{/name}}".
func (p *Parser) parseCloseBlock() (ast.Expr, ast.StripFlags, token.Token, error) {
	open, err := p.expect(token.OPEN_ENDBLOCK)
	if err != nil {
		return nil, ast.StripFlags{}, open, err
	}
	path, err := p.parseHelperName()
	if err != nil {
		return nil, ast.StripFlags{}, open, err
	}
	closeTok, err := p.expect(token.CLOSE)
	if err != nil {
		return nil, ast.StripFlags{}, open, err
	}
	return path, stripFlags(open.Literal, closeTok.Literal), closeTok, nil
}

func (p *Parser) validateClose(open *call, closeName string) error {
	if name := exprOriginal(open.path); name != closeName {
		return p.errorf(errors.E1004, open.open, "%s doesn't match %s", name, closeName)
	}
	return nil
}

func (p *Parser) prepareBlock(open *call, program *ast.Program, inverse *inverseAndProgram,
	closeStrip ast.StripFlags, inverted bool, sp ast.Span) (ast.Stmt, error) {
	program.BlockParams = open.blockParams
	if strings.Contains(open.open.Literal, "*") {
		if inverse != nil {
			return nil, p.errorf(errors.E1006, open.open, "Unexpected inverse block on decorator")
		}
		return &ast.DecoratorBlock{
			Span:       sp,
			Path:       open.path,
			Params:     open.params,
			Hash:       open.hash,
			Program:    program,
			OpenStrip:  open.strip,
			CloseStrip: closeStrip,
		}, nil
	}
	block := &ast.BlockStatement{
		Span:       sp,
		Path:       open.path,
		Params:     open.params,
		Hash:       open.hash,
		Program:    program,
		OpenStrip:  open.strip,
		CloseStrip: closeStrip,
	}
	if inverse != nil {
		block.Inverse = inverse.program
		block.InverseStrip = inverse.strip
	}
	if inverted {
		block.Program, block.Inverse = block.Inverse, block.Program
	}
	return block, nil
}

// setChainCloseStrip gives every block of an "else if" chain the strip
// flags of the tag that closes the whole chain.
func setChainCloseStrip(prog *ast.Program, strip ast.StripFlags) {
	for prog != nil && prog.Chained && len(prog.Body) > 0 {
		block, ok := prog.Body[0].(*ast.BlockStatement)
		if !ok {
			return
		}
		block.CloseStrip = strip
		prog = block.Inverse
	}
}

func (p *Parser) parseRawBlock() (ast.Stmt, error) {
	open, err := p.parseCall(token.CLOSE_RAW_BLOCK, false)
	if err != nil {
		return nil, err
	}
	program := &ast.Program{Span: ast.Span{From: p.cur.StartPosition, To: p.cur.StartPosition}}
	for p.cur.Type == token.CONTENT {
		tok := p.cur
		program.Body = append(program.Body, &ast.ContentStatement{
			Span:     span(tok, tok),
			Value:    tok.Literal,
			Original: tok.Literal,
		})
		program.To = tok.EndPosition
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	end, err := p.expect(token.END_RAW_BLOCK)
	if err != nil {
		return nil, err
	}
	if err := p.validateClose(open, end.Literal); err != nil {
		return nil, err
	}
	return &ast.BlockStatement{
		Span:    span(open.open, end),
		Path:    open.path,
		Params:  open.params,
		Hash:    open.hash,
		Program: program,
	}, nil
}

func (p *Parser) parsePartialBlock() (ast.Stmt, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	open, err := p.parseCall(token.CLOSE, false)
	if err != nil {
		return nil, err
	}
	program, err := p.parseProgram()
	if err != nil {
		return nil, err
	}
	closePath, closeStrip, closeTok, err := p.parseCloseBlock()
	if err != nil {
		return nil, err
	}
	if err := p.validateClose(open, exprOriginal(closePath)); err != nil {
		return nil, err
	}
	return &ast.PartialBlockStatement{
		Span:       span(open.open, closeTok),
		Name:       open.path,
		Params:     open.params,
		Hash:       open.hash,
		Program:    program,
		OpenStrip:  open.strip,
		CloseStrip: closeStrip,
	}, nil
}

func span(from, to token.Token) ast.Span {
	return ast.Span{From: from.StartPosition, To: to.EndPosition}
}

// id strips the brackets from a "[literal]" segment.
func id(s string) string {
	if len(s) >= 2 && s[0] == '[' && s[len(s)-1] == ']' {
		return s[1 : len(s)-1]
	}
	return s
}

func stripFlags(open, close string) ast.StripFlags {
	return ast.StripFlags{
		Open:  len(open) > 2 && open[2] == '~',
		Close: len(close) >= 3 && close[len(close)-3] == '~',
	}
}

func stripComment(s string) string {
	s = strings.TrimPrefix(s, "{{")
	s = strings.TrimPrefix(s, "~")
	s = strings.TrimPrefix(s, "!")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimSuffix(s, "}}")
	s = strings.TrimSuffix(s, "~")
	s = strings.TrimSuffix(s, "-")
	return strings.TrimSuffix(s, "-")
}

func exprOriginal(e ast.Expr) string {
	switch e := e.(type) {
	case *ast.PathExpression:
		return e.Original
	case ast.Literal:
		return e.Text()
	}
	return e.String()
}
