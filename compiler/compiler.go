// Package compiler converts a template AST into opcode programs.
//
// # Classifying expressions
//
// Every mustache, block and sub-expression is classified before it is
// compiled, because "{{foo}}" can mean a helper call, a context lookup, or
// either one depending on what is registered at render time:
//
//   - helper: the expression has arguments or a hash, or names a known helper.
//     The arguments are compiled and the helper is invoked.
//   - ambiguous: a bare single-segment name. The VM tries a helper first and
//     falls back to the context value.
//   - simple: anything else ("this.foo", "../bar", block params). The value is
//     looked up and, if it is a function, called with no arguments.
//
// With KnownHelpersOnly set, names that are not known helpers are never
// treated as helpers, and calling one with arguments is a compile error.
//
// # Programs
//
// Block bodies, inverse bodies and partial block bodies compile into child
// programs. Children are referenced by index from PushProgram operations. The
// code generator deduplicates structurally equal children across the whole
// template.
package compiler

import (
	"github.com/deepnoodle-ai/hbs/ast"
	"github.com/deepnoodle-ai/hbs/errors"
	"github.com/deepnoodle-ai/hbs/op"
)

// BuiltinHelpers are the helpers every environment registers. They are known
// to the compiler unless disabled through Options.KnownHelpers.
var BuiltinHelpers = []string{
	"helperMissing",
	"blockHelperMissing",
	"each",
	"if",
	"unless",
	"with",
	"log",
	"lookup",
}

// Options control how templates compile. They are recorded on the compiled
// artifact so partials compile the same way as the template using them.
type Options struct {
	// KnownHelpers lists helpers that will exist at render time. A false
	// value removes a built-in helper from the known set.
	KnownHelpers map[string]bool `json:"knownHelpers,omitempty"`

	// KnownHelpersOnly restricts helper calls to KnownHelpers.
	KnownHelpersOnly bool `json:"knownHelpersOnly,omitempty"`

	// Strict makes lookups of missing values an error.
	Strict bool `json:"strict,omitempty"`

	// AssumeObjects makes lookups through nil values an error.
	AssumeObjects bool `json:"assumeObjects,omitempty"`

	// Compat enables recursive lookup through parent contexts.
	Compat bool `json:"compat,omitempty"`

	// ExplicitPartialContext stops partials from inheriting the caller's
	// context when none is passed.
	ExplicitPartialContext bool `json:"explicitPartialContext,omitempty"`

	// PreventIndent emits standalone partial indentation once instead of on
	// every line of the partial output.
	PreventIndent bool `json:"preventIndent,omitempty"`

	// NoEscape disables HTML escaping of "{{expr}}" output.
	NoEscape bool `json:"noEscape,omitempty"`

	// IgnoreStandalone disables removal of standalone tag lines.
	IgnoreStandalone bool `json:"ignoreStandalone,omitempty"`

	// NoData disables the "@" data frame.
	NoData bool `json:"noData,omitempty"`
}

// Clone returns a deep copy of the options.
func (o *Options) Clone() *Options {
	if o == nil {
		return &Options{}
	}
	clone := *o
	if o.KnownHelpers != nil {
		clone.KnownHelpers = make(map[string]bool, len(o.KnownHelpers))
		for k, v := range o.KnownHelpers {
			clone.KnownHelpers[k] = v
		}
	}
	return &clone
}

// Config holds compiler configuration.
type Config struct {
	Options *Options

	// Filename is the template name, used in error messages.
	Filename string

	// Source is the template source, used in error messages.
	Source string
}

// Compiler compiles one program body. Nested bodies are compiled by child
// compilers that share the block parameter scope stack.
type Compiler struct {
	opts     *Options
	known    map[string]bool
	filename string
	source   string

	// Block parameter names by scope, innermost first.
	blockParams *[][]string

	program *Program

	// Nodes being compiled, innermost last. Opcodes take the location of the
	// innermost one.
	nodes []ast.Node

	// Set while compiling a decorator's arguments, which go to the
	// decorator stream instead of the body.
	decorating bool
}

// Compile compiles a template AST into an opcode program.
func Compile(root *ast.Program, cfg *Config) (*Program, error) {
	if root == nil {
		return nil, errors.CompileErrorf(errors.E2004, "You must pass a Handlebars AST to compile")
	}
	return New(cfg).Compile(root)
}

// New returns a compiler for the given configuration.
func New(cfg *Config) *Compiler {
	if cfg == nil {
		cfg = &Config{}
	}
	opts := cfg.Options
	if opts == nil {
		opts = &Options{}
	}
	known := make(map[string]bool, len(BuiltinHelpers)+len(opts.KnownHelpers))
	for _, name := range BuiltinHelpers {
		known[name] = true
	}
	for name, ok := range opts.KnownHelpers {
		known[name] = ok
	}
	return &Compiler{
		opts:        opts,
		known:       known,
		filename:    cfg.Filename,
		source:      cfg.Source,
		blockParams: &[][]string{},
	}
}

func (c *Compiler) child() *Compiler {
	return &Compiler{
		opts:        c.opts,
		known:       c.known,
		filename:    c.filename,
		source:      c.source,
		blockParams: c.blockParams,
	}
}

// Compile compiles a program body and returns its opcode program.
func (c *Compiler) Compile(node *ast.Program) (*Program, error) {
	c.program = &Program{}
	*c.blockParams = append([][]string{node.BlockParams}, *c.blockParams...)
	defer func() { *c.blockParams = (*c.blockParams)[1:] }()

	c.enter(node)
	for _, stmt := range node.Body {
		if err := c.compileStmt(stmt); err != nil {
			return nil, err
		}
	}
	c.leave()

	c.program.IsSimple = len(node.Body) == 1
	c.program.BlockParams = len(node.BlockParams)
	return c.program, nil
}

// compileChild compiles a nested body and returns its child index, or
// NoChild for a nil body.
func (c *Compiler) compileChild(node *ast.Program) (int, error) {
	if node == nil {
		return NoChild, nil
	}
	result, err := c.child().Compile(node)
	if err != nil {
		return NoChild, err
	}
	guid := len(c.program.Children)
	c.program.Children = append(c.program.Children, result)
	c.program.UsePartial = c.program.UsePartial || result.UsePartial
	c.program.UseDepths = c.program.UseDepths || result.UseDepths
	return guid, nil
}

func (c *Compiler) enter(node ast.Node) { c.nodes = append(c.nodes, node) }
func (c *Compiler) leave()              { c.nodes = c.nodes[:len(c.nodes)-1] }

func (c *Compiler) location() errors.SourceLocation {
	if len(c.nodes) == 0 {
		return errors.SourceLocation{Filename: c.filename}
	}
	pos := c.nodes[len(c.nodes)-1].Pos()
	return errors.SourceLocation{
		Filename: c.filename,
		Line:     pos.LineNumber(),
		Column:   pos.ColumnNumber(),
	}
}

func (c *Compiler) emit(code op.Code, args ...any) {
	opcode := Opcode{Code: code, Args: args, Loc: c.location()}
	if c.decorating {
		c.program.Decorators = append(c.program.Decorators, opcode)
	} else {
		c.program.Opcodes = append(c.program.Opcodes, opcode)
	}
}

func (c *Compiler) errorf(code errors.ErrorCode, node ast.Node, format string, args ...any) *errors.CompileError {
	err := errors.CompileErrorf(code, format, args...)
	pos := node.Pos()
	err.Filename = c.filename
	err.Line = pos.LineNumber()
	err.Column = pos.ColumnNumber()
	err.SourceLine = errors.SourceLineAt(c.source, err.Line)
	return err
}

func (c *Compiler) compileStmt(stmt ast.Stmt) error {
	c.enter(stmt)
	defer c.leave()

	switch node := stmt.(type) {
	case *ast.ContentStatement:
		if node.Value != "" {
			c.emit(op.AppendContent, node.Value)
		}
		return nil
	case *ast.CommentStatement:
		return nil
	case *ast.MustacheStatement:
		s := sexpr{path: node.Path, params: node.Params, hash: node.Hash}
		if err := c.compileSexpr(s); err != nil {
			return err
		}
		if node.Escaped && !c.opts.NoEscape {
			c.emit(op.AppendEscaped)
		} else {
			c.emit(op.Append)
		}
		return nil
	case *ast.BlockStatement:
		return c.compileBlock(node)
	case *ast.PartialStatement:
		return c.compilePartial(node.Name, node.Params, node.Hash, nil, node.Indent)
	case *ast.PartialBlockStatement:
		return c.compilePartial(node.Name, node.Params, node.Hash, node.Program, "")
	case *ast.Decorator:
		return c.compileDecorator(node.Path, node.Params, node.Hash, nil)
	case *ast.DecoratorBlock:
		return c.compileDecorator(node.Path, node.Params, node.Hash, node.Program)
	}
	return c.errorf(errors.E2001, stmt, "Unknown type: %T", stmt)
}

// sexpr is the call shape shared by mustaches, blocks and sub-expressions.
type sexpr struct {
	path   ast.Expr
	params []ast.Expr
	hash   *ast.Hash
	// subexpr is set for "(...)" expressions, which are always helper calls.
	subexpr bool
}

// kind of an expression, decided at compile time.
type kind int

const (
	simple kind = iota
	ambiguous
	helper
)

// pathOf returns the path of an expression, turning a literal used as a
// helper name ("{{"foo bar"}}", "{{true}}") into a single segment path.
func pathOf(e ast.Expr) *ast.PathExpression {
	switch node := e.(type) {
	case *ast.PathExpression:
		return node
	case ast.Literal:
		text := node.Text()
		return &ast.PathExpression{
			Span:     ast.Span{From: node.Pos(), To: node.End()},
			Parts:    []string{text},
			Original: text,
		}
	}
	return &ast.PathExpression{Span: ast.Span{From: e.Pos(), To: e.End()}}
}

func (c *Compiler) classify(s sexpr) kind {
	path := pathOf(s.path)
	isSimple := path.IsSimple()
	isBlockParam := false
	if isSimple {
		_, _, isBlockParam = c.blockParamIndex(path.Parts[0])
	}
	isHelper := !isBlockParam && (s.subexpr || len(s.params) > 0 || s.hash != nil)
	isEligible := !isBlockParam && (isHelper || isSimple)

	if isEligible && !isHelper {
		if c.known[path.Parts[0]] {
			isHelper = true
		} else if c.opts.KnownHelpersOnly {
			isEligible = false
		}
	}
	switch {
	case isHelper:
		return helper
	case isEligible:
		return ambiguous
	default:
		return simple
	}
}

// blockParamIndex resolves name against the block parameters in scope,
// innermost first.
func (c *Compiler) blockParamIndex(name string) (depth, index int, ok bool) {
	for depth, params := range *c.blockParams {
		for index, param := range params {
			if param == name {
				return depth, index, true
			}
		}
	}
	return 0, 0, false
}

func (c *Compiler) compileSexpr(s sexpr) error {
	switch c.classify(s) {
	case helper:
		return c.helperSexpr(s, NoChild, NoChild)
	case ambiguous:
		return c.ambiguousSexpr(s, NoChild, NoChild)
	default:
		return c.simpleSexpr(s)
	}
}

func (c *Compiler) simpleSexpr(s sexpr) error {
	c.compilePath(pathOf(s.path), false, true)
	c.emit(op.ResolvePossibleLambda)
	return nil
}

func (c *Compiler) ambiguousSexpr(s sexpr, program, inverse int) error {
	path := pathOf(s.path)
	isBlock := program != NoChild || inverse != NoChild
	c.emit(op.GetContext, path.Depth)
	c.emit(op.PushProgram, program)
	c.emit(op.PushProgram, inverse)
	c.compilePath(path, false, true)
	c.emit(op.InvokeAmbiguous, path.Parts[0], isBlock)
	return nil
}

func (c *Compiler) helperSexpr(s sexpr, program, inverse int) error {
	if err := c.setupFullMustacheParams(s, program, inverse, false); err != nil {
		return err
	}
	path := pathOf(s.path)
	name := path.Head()
	if c.known[name] {
		c.emit(op.InvokeKnownHelper, len(s.params), name)
		return nil
	}
	if c.opts.KnownHelpersOnly {
		err := c.errorf(errors.E2003, s.path,
			"You specified knownHelpersOnly, but used the unknown helper %s", name)
		err.Suggestions = errors.SuggestSimilar(name, c.knownNames())
		return err
	}
	c.compilePath(path, true, true)
	c.emit(op.InvokeHelper, len(s.params), path.Original, path.IsSimple())
	return nil
}

func (c *Compiler) knownNames() []string {
	names := make([]string, 0, len(c.known))
	for name, ok := range c.known {
		if ok {
			names = append(names, name)
		}
	}
	return names
}

// setupFullMustacheParams pushes the positional arguments, the program and
// inverse references and the hash, in the order the VM pops them.
func (c *Compiler) setupFullMustacheParams(s sexpr, program, inverse int, omitEmpty bool) error {
	for _, param := range s.params {
		if err := c.compileExpr(param); err != nil {
			return err
		}
	}
	c.emit(op.PushProgram, program)
	c.emit(op.PushProgram, inverse)
	if s.hash != nil {
		return c.compileHash(s.hash)
	}
	c.emit(op.EmptyHash, omitEmpty)
	return nil
}

func (c *Compiler) compileHash(hash *ast.Hash) error {
	c.enter(hash)
	defer c.leave()
	c.emit(op.PushHash)
	for _, pair := range hash.Pairs {
		if err := c.compileExpr(pair.Value); err != nil {
			return err
		}
	}
	for i := len(hash.Pairs) - 1; i >= 0; i-- {
		c.emit(op.AssignToHash, hash.Pairs[i].Key)
	}
	c.emit(op.PopHash)
	return nil
}

func (c *Compiler) compileExpr(expr ast.Expr) error {
	c.enter(expr)
	defer c.leave()

	switch node := expr.(type) {
	case *ast.PathExpression:
		c.compilePath(node, false, false)
	case *ast.SubExpression:
		return c.compileSexpr(sexpr{path: node.Path, params: node.Params, hash: node.Hash, subexpr: true})
	case *ast.StringLiteral:
		c.emit(op.PushString, node.Value)
	case *ast.NumberLiteral:
		if node.IsInteger() {
			c.emit(op.PushLiteral, int(node.Value))
		} else {
			c.emit(op.PushLiteral, node.Value)
		}
	case *ast.BooleanLiteral:
		c.emit(op.PushLiteral, node.Value)
	case *ast.UndefinedLiteral, *ast.NullLiteral:
		c.emit(op.PushLiteral, nil)
	default:
		return c.errorf(errors.E2001, expr, "Unknown type: %T", expr)
	}
	return nil
}

// compilePath emits the lookup of a path. Falsy lookups stop at the first
// missing segment; strict lookups may fail when the final segment is missing.
func (c *Compiler) compilePath(path *ast.PathExpression, falsy, strict bool) {
	if path.Depth > 0 {
		c.program.UseDepths = true
	}
	c.emit(op.GetContext, path.Depth)

	name := path.Head()
	scoped := path.IsScoped()
	if path.Depth == 0 && !scoped && name != "" {
		if depth, index, ok := c.blockParamIndex(name); ok {
			c.emit(op.LookupBlockParam, [2]int{depth, index}, path.Parts)
			return
		}
	}
	switch {
	case name == "":
		c.emit(op.PushContext)
	case path.Data:
		c.emit(op.LookupData, path.Depth, path.Parts, strict)
	default:
		c.emit(op.LookupOnContext, path.Parts, falsy, strict, scoped)
	}
}

func (c *Compiler) compileBlock(block *ast.BlockStatement) error {
	program, err := c.compileChild(block.Program)
	if err != nil {
		return err
	}
	inverse, err := c.compileChild(block.Inverse)
	if err != nil {
		return err
	}
	s := sexpr{path: block.Path, params: block.Params, hash: block.Hash}
	switch c.classify(s) {
	case helper:
		if err := c.helperSexpr(s, program, inverse); err != nil {
			return err
		}
	case simple:
		if err := c.simpleSexpr(s); err != nil {
			return err
		}
		c.emit(op.PushProgram, program)
		c.emit(op.PushProgram, inverse)
		c.emit(op.EmptyHash, false)
		c.emit(op.BlockValue, pathOf(block.Path).Original)
	default:
		if err := c.ambiguousSexpr(s, program, inverse); err != nil {
			return err
		}
		c.emit(op.PushProgram, program)
		c.emit(op.PushProgram, inverse)
		c.emit(op.EmptyHash, false)
		c.emit(op.AmbiguousBlockValue)
	}
	c.emit(op.Append)
	return nil
}

func (c *Compiler) compileDecorator(path ast.Expr, params []ast.Expr, hash *ast.Hash, body *ast.Program) error {
	program, err := c.compileChild(body)
	if err != nil {
		return err
	}
	c.decorating = true
	defer func() { c.decorating = false }()

	s := sexpr{path: path, params: params, hash: hash}
	if err := c.setupFullMustacheParams(s, program, NoChild, false); err != nil {
		return err
	}
	c.program.UseDecorators = true
	c.emit(op.RegisterDecorator, len(params), pathOf(path).Original)
	return nil
}

func (c *Compiler) compilePartial(name ast.Expr, params []ast.Expr, hash *ast.Hash, body *ast.Program, indent string) error {
	c.program.UsePartial = true

	program, err := c.compileChild(body)
	if err != nil {
		return err
	}
	if len(params) > 1 {
		return c.errorf(errors.E2002, params[1], "Unsupported number of partial arguments: %d", len(params))
	}

	partialName, dynamic := partialName(name)
	if dynamic {
		if err := c.compileExpr(name); err != nil {
			return err
		}
	}
	if len(params) == 0 {
		if c.opts.ExplicitPartialContext {
			c.emit(op.PushLiteral, nil)
		} else {
			params = []ast.Expr{&ast.PathExpression{
				Span:  ast.Span{From: name.Pos(), To: name.End()},
				Parts: []string{},
			}}
		}
	}
	s := sexpr{params: params, hash: hash}
	if err := c.setupFullMustacheParams(s, program, NoChild, true); err != nil {
		return err
	}
	if c.opts.PreventIndent && indent != "" {
		c.emit(op.AppendContent, indent)
		indent = ""
	}
	c.emit(op.InvokePartial, dynamic, partialName, indent)
	c.emit(op.Append)
	return nil
}

// partialName returns the static name of a partial, or reports that the name
// is computed by a sub-expression.
func partialName(e ast.Expr) (string, bool) {
	switch node := e.(type) {
	case *ast.SubExpression:
		return "", true
	case *ast.PathExpression:
		return node.Original, false
	case ast.Literal:
		return node.Text(), false
	}
	return e.String(), false
}
