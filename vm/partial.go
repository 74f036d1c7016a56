package vm

import (
	"strings"

	"github.com/deepnoodle-ai/hbs/bytecode"
	"github.com/deepnoodle-ai/hbs/errors"
)

const partialBlock = "@partial-block"

// invokePartial pops the operands of a partial call and renders it.
func (m *machine) invokePartial(dynamic bool, name, indent string) (string, error) {
	hash, _ := m.pop().(map[string]any)
	inverse := asProgram(m.pop())
	fn := asProgram(m.pop())
	context := m.pop()

	var partial any
	if dynamic {
		switch v := m.pop().(type) {
		case nil:
			name = "undefined"
		case string:
			name = v
		case SafeString:
			name = string(v)
		case *Program, *bytecode.Template, ProgramFunc:
			name = ""
			partial = v
		default:
			name = ToString(v)
		}
	}
	if hash != nil {
		context = extend(context, hash)
	}
	if partial == nil {
		if name == partialBlock {
			partial = m.data.Value("partial-block")
		} else {
			partial = m.partials[name]
		}
	}

	opts := m.options(name, hash, fn, inverse)
	state := m.c.state
	if err := state.onCall(CallPartial, name, 1, opts.Loc); err != nil {
		return "", err
	}
	out, err := m.renderPartial(name, partial, context, opts)
	if rerr := state.onReturn(CallPartial, name, opts.Loc, err != nil); rerr != nil && err == nil {
		err = rerr
	}
	if err != nil {
		var re *errors.RenderError
		if errors.As(err, &re) {
			loc := opts.Loc
			re.WithFrame("partial "+name, errors.SourceLocation{
				Filename: m.c.tmpl.Filename(),
				Line:     loc.Line,
				Column:   loc.Column,
			})
		}
		return "", err
	}
	if indent != "" {
		out = indentLines(out, indent)
	}
	return out, nil
}

// renderPartial sets up the partial block and renders partial. A missing
// partial falls back to the block when one was given.
func (m *machine) renderPartial(name string, partial, context any, opts *Options) (string, error) {
	state := m.c.state
	if state.partialDepth >= MaxPartialDepth {
		return "", errors.RenderErrorf(errors.E3008, "partial %s exceeded the maximum nesting depth of %d", name, MaxPartialDepth)
	}
	state.partialDepth++
	defer func() { state.partialDepth-- }()

	data := m.data
	partials := m.partials
	current := data.Value("partial-block")
	var block *Program
	if !opts.Fn.IsNoop() {
		data = NewFrame(data)
		fn := opts.Fn
		outer := data
		block = NewProgram(func(ctx any, eo *ExecOptions) (string, error) {
			parent := eo.Data
			if parent == nil {
				parent = outer
			}
			frame := NewFrame(parent)
			frame.Set("partial-block", current)
			return fn.ExecWith(ctx, &ExecOptions{Data: frame, BlockParams: eo.BlockParams})
		})
		data.Set("partial-block", block)
		if len(fn.partials) > 0 {
			merged := make(map[string]any, len(partials)+len(fn.partials))
			for k, v := range partials {
				merged[k] = v
			}
			for k, v := range fn.partials {
				merged[k] = v
			}
			partials = merged
		}
	}
	if partial == nil && block != nil {
		partial = block
	}
	if partial == nil {
		return "", errors.RenderErrorf(errors.E3002, "The partial %s could not be found", name)
	}

	switch p := partial.(type) {
	case *Program:
		return p.ExecWith(context, &ExecOptions{Data: data})
	case ProgramFunc:
		return p(context, &ExecOptions{Data: data})
	case func(any, *ExecOptions) (string, error):
		return p(context, &ExecOptions{Data: data})
	case *bytecode.Template:
		return m.renderTemplate(p, context, data, partials)
	}

	if state.compiler == nil {
		return "", errors.RenderErrorf(errors.E3009, "The partial %s could not be compiled when running in runtime-only mode", name)
	}
	tmpl, err := state.compiler(name, partial, m.c.tmpl.Options())
	if err != nil {
		return "", errors.NewRenderError(errors.E3009, err)
	}
	if name != "" && partials != nil {
		partials[name] = tmpl
	}
	return m.renderTemplate(tmpl, context, data, partials)
}

// renderTemplate renders a compiled partial in a child container that
// shares the render state, helpers, decorators and hooks of the caller.
func (m *machine) renderTemplate(tmpl *bytecode.Template, context any, data *Frame, partials map[string]any) (string, error) {
	if err := CheckRevision(tmpl.Revision()); err != nil {
		return "", err
	}
	child := newContainer(tmpl, m.c.state)
	child.helpers = m.c.helpers
	child.decorators = m.c.decorators
	child.hooks = m.c.hooks
	child.partials = partials
	var depths []any
	if m.c.tmpl.Compat() {
		depths = m.depths
	}
	return child.render(context, data, nil, depths, true)
}

// indentLines prefixes every line of s with indent, except a trailing
// empty line.
func indentLines(s, indent string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line == "" && i == len(lines)-1 {
			break
		}
		lines[i] = indent + line
	}
	return strings.Join(lines, "\n")
}
