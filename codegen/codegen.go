// Package codegen lowers opcode programs into executable bytecode templates.
//
// Lowering is a single pass over each opcode stream that:
//
//   - folds GetContext into the lookup that consumes it
//   - merges adjacent AppendContent operations into one constant
//   - collapses PushHash/AssignToHash/PopHash into one BuildHash
//   - turns literals into LoadConst or Nil
//   - resolves lookup flags from the compile options
//   - assigns every child program an index in one template wide table,
//     reusing the index of an equal program compiled earlier
//
// The generator simulates the operand stack while lowering. A stream that
// underflows or leaves values behind is a compiler bug and fails generation.
package codegen

import (
	"fmt"
	"strings"

	"github.com/gofrs/uuid"

	"github.com/deepnoodle-ai/hbs/bytecode"
	"github.com/deepnoodle-ai/hbs/compiler"
	"github.com/deepnoodle-ai/hbs/errors"
	"github.com/deepnoodle-ai/hbs/op"
)

// Config holds code generation configuration.
type Config struct {
	Options *compiler.Options

	// ID identifies the template. A random UUID is used when empty.
	ID string

	// Filename and Source are recorded on the template for error messages.
	Filename string
	Source   string
}

// Generate lowers a compiled program into a template.
func Generate(prog *compiler.Program, cfg *Config) (*bytecode.Template, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	opts := cfg.Options
	if opts == nil {
		opts = &compiler.Options{}
	}
	id := cfg.ID
	if id == "" {
		u, err := uuid.NewV4()
		if err != nil {
			return nil, err
		}
		id = u.String()
	}

	g := &generator{opts: opts}
	main, err := g.program(prog, "main")
	if err != nil {
		return nil, err
	}
	useDecorators := main.Decorators() != nil
	for _, p := range g.programs {
		if p.Decorators() != nil {
			useDecorators = true
		}
	}
	return bytecode.NewTemplate(bytecode.TemplateParams{
		ID:             id,
		Filename:       cfg.Filename,
		Source:         cfg.Source,
		Revision:       bytecode.CurrentRevision(),
		Options:        opts,
		Main:           main,
		Programs:       g.programs,
		UseDepths:      g.useDepths || prog.UseDepths || useDecorators || opts.Compat,
		UseBlockParams: g.useBlockParams,
		UsePartial:     prog.UsePartial,
		UseDecorators:  useDecorators,
	}), nil
}

// generator holds the state shared by every program of one template.
type generator struct {
	opts *compiler.Options

	programs []*bytecode.Code
	// Source programs by table index, for deduplication. An entry is nil
	// while the program is being generated.
	sources []*compiler.Program

	useDepths      bool
	useBlockParams bool
}

func (g *generator) matchExisting(p *compiler.Program) (int, bool) {
	for i, existing := range g.sources {
		if existing != nil && existing.Equals(p) {
			return i, true
		}
	}
	return 0, false
}

func (g *generator) program(p *compiler.Program, name string) (*bytecode.Code, error) {
	// Children first, so their table indexes are known while lowering.
	children := make([]int, len(p.Children))
	for i, child := range p.Children {
		if idx, ok := g.matchExisting(child); ok {
			children[i] = idx
			continue
		}
		idx := len(g.programs)
		g.programs = append(g.programs, nil)
		g.sources = append(g.sources, nil)
		code, err := g.program(child, fmt.Sprintf("program%d", idx))
		if err != nil {
			return nil, err
		}
		g.programs[idx] = code
		g.sources[idx] = child
		g.useDepths = g.useDepths || child.UseDepths
		children[i] = idx
	}

	var decorators *bytecode.Code
	if len(p.Decorators) > 0 {
		l := newLowering(g, children, name+"_d")
		if err := l.lower(p.Decorators); err != nil {
			return nil, err
		}
		decorators = l.code(nil, 0, false)
	}

	l := newLowering(g, children, name)
	if err := l.lower(p.Opcodes); err != nil {
		return nil, err
	}
	return l.code(decorators, p.BlockParams, p.IsSimple), nil
}

// lowering converts one opcode stream into one bytecode.Code.
type lowering struct {
	g        *generator
	name     string
	children []int

	instructions []op.Code
	locations    []bytecode.SourceLocation

	constants  []any
	constIndex map[any]int
	names      []string
	nameIndex  map[string]int
	paths      [][]string
	pathIndex  map[string]int

	depth       int // simulated operand stack depth
	lastContext int
	hashes      [][]string

	pending    strings.Builder
	hasPending bool
	pendingLoc bytecode.SourceLocation
}

func newLowering(g *generator, children []int, name string) *lowering {
	return &lowering{
		g:          g,
		name:       name,
		children:   children,
		constIndex: map[any]int{},
		nameIndex:  map[string]int{},
		pathIndex:  map[string]int{},
	}
}

func (l *lowering) code(decorators *bytecode.Code, blockParams int, isSimple bool) *bytecode.Code {
	return bytecode.NewCode(bytecode.CodeParams{
		Name:         l.name,
		Instructions: l.instructions,
		Constants:    l.constants,
		Names:        l.names,
		Paths:        l.paths,
		Locations:    l.locations,
		Decorators:   decorators,
		BlockParams:  blockParams,
		IsSimple:     isSimple,
	})
}

func (l *lowering) internalError(o compiler.Opcode, format string, args ...any) error {
	err := errors.CompileErrorf(errors.E2005, "internal error in %s: "+format, append([]any{l.name}, args...)...)
	err.Filename = o.Loc.Filename
	err.Line = o.Loc.Line
	err.Column = o.Loc.Column
	return err
}

func (l *lowering) emit(loc errors.SourceLocation, code op.Code, operands ...int) {
	l.flushContent()
	l.emitRaw(bytecode.SourceLocation{Line: loc.Line, Column: loc.Column}, code, operands...)
}

func (l *lowering) emitRaw(loc bytecode.SourceLocation, code op.Code, operands ...int) {
	l.instructions = append(l.instructions, code)
	l.locations = append(l.locations, loc)
	for _, operand := range operands {
		l.instructions = append(l.instructions, op.Code(operand))
		l.locations = append(l.locations, loc)
	}
}

func (l *lowering) flushContent() {
	if !l.hasPending {
		return
	}
	idx := l.constant(l.pending.String())
	l.pending.Reset()
	l.hasPending = false
	l.emitRaw(l.pendingLoc, op.AppendContent, idx)
}

func (l *lowering) constant(v any) int {
	if idx, ok := l.constIndex[v]; ok {
		return idx
	}
	l.constants = append(l.constants, v)
	l.constIndex[v] = len(l.constants) - 1
	return len(l.constants) - 1
}

func (l *lowering) nameRef(name string) int {
	if idx, ok := l.nameIndex[name]; ok {
		return idx
	}
	l.names = append(l.names, name)
	l.nameIndex[name] = len(l.names) - 1
	return len(l.names) - 1
}

func (l *lowering) pathRef(parts []string) int {
	key := strings.Join(parts, "\x00")
	if idx, ok := l.pathIndex[key]; ok {
		return idx
	}
	l.paths = append(l.paths, append([]string{}, parts...))
	l.pathIndex[key] = len(l.paths) - 1
	return len(l.paths) - 1
}

func (l *lowering) programRef(guid int) int {
	if guid == compiler.NoChild {
		return op.NoProgram
	}
	return l.children[guid]
}

// stack applies the stack effect of one instruction: it pops n values and
// pushes m.
func (l *lowering) stack(o compiler.Opcode, pop, push int) error {
	if l.depth < pop {
		return l.internalError(o, "%s pops %d values from a stack of %d", o.Code, pop, l.depth)
	}
	l.depth += push - pop
	return nil
}

func (l *lowering) lookupFlags(falsy, strict, scoped bool) op.LookupFlag {
	var flags op.LookupFlag
	if falsy {
		flags |= op.Falsy
	}
	if strict && l.g.opts.Strict {
		flags |= op.RequireTerminal
	}
	if scoped {
		flags |= op.Scoped
	}
	if !scoped && l.g.opts.Compat && l.lastContext == 0 {
		flags |= op.Depthed
	}
	if l.g.opts.Strict || l.g.opts.AssumeObjects {
		flags |= op.Assume
	}
	return flags
}

func (l *lowering) lower(opcodes []compiler.Opcode) error {
	for _, o := range opcodes {
		if err := l.lowerOne(o); err != nil {
			return err
		}
	}
	l.flushContent()
	if len(l.hashes) > 0 {
		return errors.CompileErrorf(errors.E2005, "internal error in %s: unterminated hash", l.name)
	}
	if l.depth != 0 {
		return errors.CompileErrorf(errors.E2005, "internal error in %s: compile completed with content left on stack (%d values)", l.name, l.depth)
	}
	return nil
}

func (l *lowering) lowerOne(o compiler.Opcode) error {
	switch o.Code {
	case op.AppendContent:
		if !l.hasPending {
			l.pendingLoc = bytecode.SourceLocation{Line: o.Loc.Line, Column: o.Loc.Column}
		}
		l.pending.WriteString(o.Args[0].(string))
		l.hasPending = true
		return nil

	case op.Append, op.AppendEscaped:
		l.emit(o.Loc, o.Code)
		return l.stack(o, 1, 0)

	case op.GetContext:
		l.lastContext = o.Args[0].(int)
		return nil

	case op.PushContext:
		l.emit(o.Loc, op.PushContext, l.lastContext)
		return l.stack(o, 0, 1)

	case op.LookupOnContext:
		parts := o.Args[0].([]string)
		flags := l.lookupFlags(o.Args[1].(bool), o.Args[2].(bool), o.Args[3].(bool))
		l.emit(o.Loc, op.LookupOnContext, l.lastContext, l.pathRef(parts), int(flags))
		return l.stack(o, 0, 1)

	case op.LookupBlockParam:
		id := o.Args[0].([2]int)
		parts := o.Args[1].([]string)
		l.g.useBlockParams = true
		var flags op.LookupFlag
		if l.g.opts.Strict || l.g.opts.AssumeObjects {
			flags |= op.Assume
		}
		l.emit(o.Loc, op.LookupBlockParam, id[0], id[1], l.pathRef(parts), int(flags))
		return l.stack(o, 0, 1)

	case op.LookupData:
		depth := o.Args[0].(int)
		parts := o.Args[1].([]string)
		flags := op.Falsy
		if o.Args[2].(bool) && l.g.opts.Strict {
			flags |= op.RequireTerminal
		}
		if l.g.opts.Strict || l.g.opts.AssumeObjects {
			flags |= op.Assume
		}
		l.emit(o.Loc, op.LookupData, depth, l.pathRef(parts), int(flags))
		return l.stack(o, 0, 1)

	case op.ResolvePossibleLambda:
		l.emit(o.Loc, op.ResolvePossibleLambda)
		return l.stack(o, 1, 1)

	case op.PushString:
		l.emit(o.Loc, op.LoadConst, l.constant(o.Args[0].(string)))
		return l.stack(o, 0, 1)

	case op.PushLiteral:
		if o.Args[0] == nil {
			l.emit(o.Loc, op.Nil)
		} else {
			l.emit(o.Loc, op.LoadConst, l.constant(o.Args[0]))
		}
		return l.stack(o, 0, 1)

	case op.PushProgram:
		l.emit(o.Loc, op.PushProgram, l.programRef(o.Args[0].(int)))
		return l.stack(o, 0, 1)

	case op.EmptyHash:
		omit := 0
		if o.Args[0].(bool) {
			omit = 1
		}
		l.emit(o.Loc, op.EmptyHash, omit)
		return l.stack(o, 0, 1)

	case op.PushHash:
		l.hashes = append(l.hashes, nil)
		return nil

	case op.AssignToHash:
		if len(l.hashes) == 0 {
			return l.internalError(o, "ASSIGN_TO_HASH outside of a hash")
		}
		top := len(l.hashes) - 1
		l.hashes[top] = append(l.hashes[top], o.Args[0].(string))
		return nil

	case op.PopHash:
		if len(l.hashes) == 0 {
			return l.internalError(o, "POP_HASH outside of a hash")
		}
		top := len(l.hashes) - 1
		assigned := l.hashes[top]
		l.hashes = l.hashes[:top]
		// Keys are assigned last to first; the values are on the stack in
		// source order.
		keys := make([]string, len(assigned))
		for i, key := range assigned {
			keys[len(assigned)-1-i] = key
		}
		l.emit(o.Loc, op.BuildHash, l.pathRef(keys))
		return l.stack(o, len(keys), 1)

	case op.InvokeHelper:
		argc := o.Args[0].(int)
		simple := 0
		if o.Args[2].(bool) {
			simple = 1
		}
		l.emit(o.Loc, op.InvokeHelper, argc, l.nameRef(o.Args[1].(string)), simple)
		return l.stack(o, argc+4, 1)

	case op.InvokeKnownHelper:
		argc := o.Args[0].(int)
		l.emit(o.Loc, op.InvokeKnownHelper, argc, l.nameRef(o.Args[1].(string)))
		return l.stack(o, argc+3, 1)

	case op.InvokeAmbiguous:
		isBlock := 0
		if o.Args[1].(bool) {
			isBlock = 1
		}
		l.emit(o.Loc, op.InvokeAmbiguous, l.nameRef(o.Args[0].(string)), isBlock)
		return l.stack(o, 3, 1)

	case op.BlockValue:
		l.emit(o.Loc, op.BlockValue, l.nameRef(o.Args[0].(string)))
		return l.stack(o, 4, 1)

	case op.AmbiguousBlockValue:
		l.emit(o.Loc, op.AmbiguousBlockValue)
		return l.stack(o, 4, 1)

	case op.InvokePartial:
		dynamic := o.Args[0].(bool)
		pop := 4
		flag := 0
		if dynamic {
			pop++
			flag = 1
		}
		indent := l.constant(o.Args[2].(string))
		l.emit(o.Loc, op.InvokePartial, flag, l.nameRef(o.Args[1].(string)), indent)
		return l.stack(o, pop, 1)

	case op.RegisterDecorator:
		argc := o.Args[0].(int)
		l.emit(o.Loc, op.RegisterDecorator, argc, l.nameRef(o.Args[1].(string)))
		return l.stack(o, argc+3, 0)
	}
	return l.internalError(o, "unknown opcode %s", o.Code)
}
