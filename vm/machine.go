package vm

import (
	"fmt"
	"strings"

	"github.com/deepnoodle-ai/hbs/bytecode"
	"github.com/deepnoodle-ai/hbs/errors"
	"github.com/deepnoodle-ai/hbs/op"
)

// machine executes one program body.
type machine struct {
	c    *Container
	code *bytecode.Code
	ip   int
	// start of the instruction being executed
	opIP  int
	stack []any
	out   strings.Builder

	context     any
	partials    map[string]any
	data        *Frame
	blockParams [][]any
	depths      []any

	// lastHelper records whether the last ambiguous invocation found a
	// registered helper.
	lastHelper bool

	// Decorator streams thread the decorated program and the shared props.
	fn    *Program
	props *Props
}

// strictMiss stands in for a value whose strict lookup failed. Helper
// invocations raise it only when no registered helper takes precedence.
type strictMiss struct {
	err error
}

func (m *machine) push(v any) {
	m.stack = append(m.stack, v)
}

func (m *machine) pop() any {
	top := len(m.stack) - 1
	v := m.stack[top]
	m.stack[top] = nil
	m.stack = m.stack[:top]
	return v
}

func (m *machine) popN(n int) []any {
	if n == 0 {
		return nil
	}
	start := len(m.stack) - n
	values := make([]any, n)
	copy(values, m.stack[start:])
	for i := start; i < len(m.stack); i++ {
		m.stack[i] = nil
	}
	m.stack = m.stack[:start]
	return values
}

func (m *machine) operand() int {
	v := int(m.code.InstructionAt(m.ip))
	m.ip++
	return v
}

func (m *machine) loc() bytecode.SourceLocation {
	return m.code.LocationAt(m.opIP)
}

func (m *machine) strict() bool {
	return m.c.tmpl.Strict()
}

// receiver is the "this" of helper calls.
func (m *machine) receiver() any {
	if m.context == nil {
		return NullContext
	}
	return m.context
}

func (m *machine) contextAt(depth int) any {
	if depth == 0 {
		return m.context
	}
	if depth < len(m.depths) {
		return m.depths[depth]
	}
	return nil
}

func (m *machine) run() (string, error) {
	n := m.code.InstructionCount()
	for m.ip < n {
		m.opIP = m.ip
		if err := m.c.state.step(m, m.ip); err != nil {
			return "", m.annotate(err)
		}
		opcode := m.code.InstructionAt(m.ip)
		m.ip++
		if err := m.exec(opcode); err != nil {
			return "", m.annotate(err)
		}
	}
	return m.out.String(), nil
}

// annotate turns err into a RenderError carrying the location of the
// current instruction, unless an inner program already located it.
func (m *machine) annotate(err error) error {
	var re *errors.RenderError
	if !errors.As(err, &re) {
		re = &errors.RenderError{Code: errors.E3008, Err: err}
	}
	if re.Location.IsZero() {
		loc := m.loc()
		re.Location = errors.SourceLocation{
			Filename: m.c.tmpl.Filename(),
			Line:     loc.Line,
			Column:   loc.Column,
			Source:   m.c.tmpl.GetSourceLine(loc.Line),
		}
	}
	return re
}

func (m *machine) exec(opcode op.Code) error {
	code := m.code
	switch opcode {
	case op.AppendContent:
		m.out.WriteString(code.ConstantAt(m.operand()).(string))

	case op.Append:
		if v := m.pop(); v != nil {
			m.out.WriteString(ToString(v))
		}

	case op.AppendEscaped:
		m.out.WriteString(EscapeValue(m.pop()))

	case op.PushContext:
		m.push(m.contextAt(m.operand()))

	case op.LookupOnContext:
		depth, path, flags := m.operand(), code.PathAt(m.operand()), op.LookupFlag(m.operand())
		var current any
		start := 0
		if flags.Has(op.Depthed) {
			current = m.depthedLookup(path[0])
			start = 1
		} else {
			current = m.contextAt(depth)
		}
		v, err := m.resolvePath(current, path, start, flags)
		if err != nil {
			return err
		}
		m.push(v)

	case op.LookupBlockParam:
		depth, index := m.operand(), m.operand()
		path, flags := code.PathAt(m.operand()), op.LookupFlag(m.operand())
		var current any
		if depth < len(m.blockParams) && index < len(m.blockParams[depth]) {
			current = m.blockParams[depth][index]
		}
		v, err := m.resolvePath(current, path, 1, flags)
		if err != nil {
			return err
		}
		m.push(v)

	case op.LookupData:
		depth, path, flags := m.operand(), code.PathAt(m.operand()), op.LookupFlag(m.operand())
		var current any
		if frame := m.data.depth(depth); frame != nil {
			current = frame
		}
		v, err := m.resolvePath(current, path, 0, flags)
		if err != nil {
			return err
		}
		m.push(v)

	case op.ResolvePossibleLambda:
		v := m.pop()
		if miss, ok := v.(strictMiss); ok {
			return miss.err
		}
		if IsFunction(v) {
			result, err := Call(v, m.context, nil, m.emptyOptions(""))
			if err != nil {
				return err
			}
			v = result
		}
		m.push(v)

	case op.LoadConst:
		m.push(code.ConstantAt(m.operand()))

	case op.Nil:
		m.push(nil)

	case op.PushProgram:
		idx := m.operand()
		if idx == op.NoProgram {
			m.push(nil)
			return nil
		}
		tmpl := m.c.tmpl
		var blockParams [][]any
		var depths []any
		if tmpl.UseBlockParams() || tmpl.UseDepths() {
			blockParams = m.blockParams
		}
		if tmpl.UseDepths() {
			depths = m.depths
		}
		prog, err := m.c.program(idx, m.data, blockParams, depths)
		if err != nil {
			return err
		}
		m.push(prog)

	case op.EmptyHash:
		if m.operand() == 1 {
			m.push(nil)
		} else {
			m.push(map[string]any{})
		}

	case op.BuildHash:
		keys := code.PathAt(m.operand())
		values := m.popN(len(keys))
		hash := make(map[string]any, len(keys))
		for i, key := range keys {
			hash[key] = values[i]
		}
		m.push(hash)

	case op.InvokeHelper:
		argc, name, simple := m.operand(), code.NameAt(m.operand()), m.operand() == 1
		value := m.pop()
		opts, params := m.popOptions(name, argc)
		var fn any
		if simple {
			fn = m.c.helpers[name]
		}
		if fn == nil {
			if miss, ok := value.(strictMiss); ok {
				return miss.err
			}
			switch {
			case IsTruthy(value):
				fn = value
			case !m.strict():
				fn = m.c.hooks[helperMissing]
			}
		}
		result, err := m.callHelper(name, fn, params, opts)
		if err != nil {
			return err
		}
		m.push(result)

	case op.InvokeKnownHelper:
		argc, name := m.operand(), code.NameAt(m.operand())
		opts, params := m.popOptions(name, argc)
		result, err := m.callHelper(name, m.c.helpers[name], params, opts)
		if err != nil {
			return err
		}
		m.push(result)

	case op.InvokeAmbiguous:
		name := code.NameAt(m.operand())
		m.operand() // block flag, informational
		value := m.pop()
		inverse := asProgram(m.pop())
		fn := asProgram(m.pop())
		opts := m.options(name, map[string]any{}, fn, inverse)
		helper := m.c.helpers[name]
		m.lastHelper = helper != nil
		if helper == nil {
			if miss, ok := value.(strictMiss); ok {
				return miss.err
			}
			helper = value
			if helper == nil && !m.strict() {
				helper = m.c.hooks[helperMissing]
			}
		}
		if !IsFunction(helper) {
			m.push(helper)
			return nil
		}
		result, err := m.callHelper(name, helper, nil, opts)
		if err != nil {
			return err
		}
		m.push(result)

	case op.BlockValue:
		name := code.NameAt(m.operand())
		opts, _ := m.popOptions(name, 0)
		value := m.pop()
		result, err := m.callHelper(blockHelperMissing, m.c.hooks[blockHelperMissing], []any{value}, opts)
		if err != nil {
			return err
		}
		m.push(result)

	case op.AmbiguousBlockValue:
		opts, _ := m.popOptions("", 0)
		current := m.pop()
		if !m.lastHelper {
			result, err := m.callHelper(blockHelperMissing, m.c.hooks[blockHelperMissing], []any{current}, opts)
			if err != nil {
				return err
			}
			current = result
		}
		m.push(current)

	case op.InvokePartial:
		dynamic, name, indent := m.operand() == 1, code.NameAt(m.operand()), code.ConstantAt(m.operand()).(string)
		out, err := m.invokePartial(dynamic, name, indent)
		if err != nil {
			return err
		}
		m.push(out)

	case op.RegisterDecorator:
		argc, name := m.operand(), code.NameAt(m.operand())
		opts, params := m.popOptions(name, argc)
		opts.Args = params
		return m.registerDecorator(name, opts)

	default:
		return errors.RenderErrorf(errors.E3008, "invalid opcode %s at %s:%d", opcode, code.Name(), m.opIP)
	}
	return nil
}

func asProgram(v any) *Program {
	if p, ok := v.(*Program); ok && p != nil {
		return p
	}
	return noop
}

func (m *machine) options(name string, hash map[string]any, fn, inverse *Program) *Options {
	return &Options{
		Name:      name,
		Hash:      hash,
		Fn:        fn,
		Inverse:   inverse,
		Data:      m.data,
		Loc:       m.loc(),
		container: m.c,
	}
}

func (m *machine) emptyOptions(name string) *Options {
	return m.options(name, map[string]any{}, noop, noop)
}

// popOptions pops the hash, the inverse and program references and argc
// positional arguments.
func (m *machine) popOptions(name string, argc int) (*Options, []any) {
	hash, _ := m.pop().(map[string]any)
	if hash == nil {
		hash = map[string]any{}
	}
	inverse := asProgram(m.pop())
	fn := asProgram(m.pop())
	params := m.popN(argc)
	return m.options(name, hash, fn, inverse), params
}

func (m *machine) callHelper(name string, fn any, params []any, opts *Options) (any, error) {
	if fn == nil {
		return nil, errors.RenderErrorf(errors.E3001, "Missing helper: %q", name)
	}
	if !IsFunction(fn) {
		return nil, errors.RenderErrorf(errors.E3007, "%s is not a function", name)
	}
	state := m.c.state
	if err := state.onCall(CallHelper, name, len(params), opts.Loc); err != nil {
		return nil, err
	}
	result, err := Call(fn, m.receiver(), params, opts)
	if rerr := state.onReturn(CallHelper, name, opts.Loc, err != nil); rerr != nil && err == nil {
		err = rerr
	}
	if err != nil {
		var re *errors.RenderError
		if errors.As(err, &re) || errors.Is(err, ErrHalted) {
			return nil, err
		}
		return nil, &errors.RenderError{
			Code:    errors.E3008,
			Message: fmt.Sprintf("helper %q: %s", name, err),
			Err:     err,
		}
	}
	return result, nil
}

// depthedLookup returns name from the nearest ancestor context that has it.
func (m *machine) depthedLookup(name string) any {
	for _, depth := range m.depths {
		if depth == nil {
			continue
		}
		if v := m.c.LookupProperty(depth, name); v != nil {
			return v
		}
	}
	return nil
}

// resolvePath reads path[start:] from current.
func (m *machine) resolvePath(current any, path []string, start int, flags op.LookupFlag) (any, error) {
	get := m.c.LookupProperty
	if flags.Has(op.Assume) {
		end := len(path)
		terminal := flags.Has(op.RequireTerminal)
		if terminal {
			end--
		}
		for i := start; i < end; i++ {
			if current == nil {
				return nil, errors.RenderErrorf(errors.E3005, "cannot read property %q of undefined", path[i])
			}
			current = get(current, path[i])
		}
		if terminal {
			name := path[end]
			if !IsTruthy(current) || !hasProperty(current, name) {
				return strictMiss{err: errors.RenderErrorf(errors.E3003, "%q not defined in %s", name, describe(current))}, nil
			}
			current = get(current, name)
		}
		return current, nil
	}
	for i := start; i < len(path); i++ {
		if flags.Has(op.Falsy) {
			if !IsTruthy(current) {
				return current, nil
			}
		} else if current == nil {
			return nil, nil
		}
		current = get(current, path[i])
	}
	return current, nil
}

func describe(v any) string {
	if v == nil {
		return "undefined"
	}
	return ToString(v)
}

func (m *machine) registerDecorator(name string, opts *Options) error {
	dec := m.c.decorators[name]
	if dec == nil {
		return errors.RenderErrorf(errors.E3006, "Missing decorator: %q", name)
	}
	state := m.c.state
	if err := state.onCall(CallDecorator, name, len(opts.Args), opts.Loc); err != nil {
		return err
	}
	result, err := callDecorator(dec, m.fn, m.props, m.c, opts)
	if rerr := state.onReturn(CallDecorator, name, opts.Loc, err != nil); rerr != nil && err == nil {
		err = rerr
	}
	if err != nil {
		return err
	}
	if result != nil {
		m.fn = result
	}
	return nil
}
