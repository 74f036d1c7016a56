package vm

import (
	"github.com/rs/zerolog"

	"github.com/deepnoodle-ai/hbs/bytecode"
)

// ExecOptions are passed when a helper executes a block program.
type ExecOptions struct {
	// Data replaces the data frame the program was created with.
	Data *Frame

	// BlockParams are the values bound to the program's "as |a b|" names.
	BlockParams []any
}

// ProgramFunc renders a program against a context.
type ProgramFunc func(context any, opts *ExecOptions) (string, error)

// Program is a renderable block body handed to helpers and decorators as
// Options.Fn and Options.Inverse. A nil Program renders nothing.
type Program struct {
	run         ProgramFunc
	index       int
	blockParams int
	partials    map[string]any
}

// NewProgram wraps fn as a Program. Decorators use it to wrap the program
// they receive.
func NewProgram(fn ProgramFunc) *Program {
	return &Program{run: fn, index: -1}
}

// noop is the program used when a block has no body or no inverse.
var noop = &Program{index: -1}

// Exec renders the program with the given context.
func (p *Program) Exec(context any) (string, error) {
	return p.ExecWith(context, nil)
}

// ExecWith renders the program with the given context, data and block
// parameters.
func (p *Program) ExecWith(context any, opts *ExecOptions) (string, error) {
	if p == nil || p.run == nil {
		return "", nil
	}
	if opts == nil {
		opts = &ExecOptions{}
	}
	return p.run(context, opts)
}

// IsNoop reports whether the program renders nothing because it has no body.
func (p *Program) IsNoop() bool {
	return p == nil || p.run == nil
}

// BlockParams returns the number of block parameters the body declares.
func (p *Program) BlockParams() int {
	if p == nil {
		return 0
	}
	return p.blockParams
}

// Index returns the program's position in the template program table, or -1
// for programs built with NewProgram.
func (p *Program) Index() int {
	if p == nil {
		return -1
	}
	return p.index
}

// Partials returns the partials registered on the program by decorators.
func (p *Program) Partials() map[string]any {
	if p == nil {
		return nil
	}
	return p.partials
}

// Props is the bag decorators of one program share. Partials registered in
// it become visible to partial blocks rendering the program.
type Props struct {
	Partials map[string]any
	Values   map[string]any
}

// Options is passed to helpers and decorators.
type Options struct {
	// Name is the helper name as written in the template.
	Name string

	// Hash holds the key=value arguments. It is never nil.
	Hash map[string]any

	// Fn renders the block body; Inverse renders the {{else}} body.
	// Both are no-ops for non-block calls.
	Fn      *Program
	Inverse *Program

	// Data is the current data frame, or nil when data is disabled.
	Data *Frame

	// Args holds the positional arguments of decorators.
	Args []any

	// Loc is the location of the call.
	Loc bytecode.SourceLocation

	container *Container
}

// HashValue returns a hash argument, or nil when it was not given.
func (o *Options) HashValue(key string) any {
	if o == nil {
		return nil
	}
	return o.Hash[key]
}

// LookupProperty reads property name of parent under the render's access
// control.
func (o *Options) LookupProperty(parent any, name string) any {
	if o == nil || o.container == nil {
		return property(parent, name)
	}
	return o.container.LookupProperty(parent, name)
}

// IsBlock reports whether the helper was called as a block.
func (o *Options) IsBlock() bool {
	return o != nil && !(o.Fn.IsNoop() && o.Inverse.IsNoop())
}

// Container returns the runtime container of the render.
func (o *Options) Container() *Container {
	if o == nil {
		return nil
	}
	return o.container
}

// Logger returns the logger of the render.
func (o *Options) Logger() *zerolog.Logger {
	if o == nil || o.container == nil {
		l := zerolog.Nop()
		return &l
	}
	return o.container.Logger()
}

// HelperFunc is the native helper signature. this is the current context,
// args the positional arguments.
//
// Any other function can be registered as a helper too: its parameters are
// filled from the positional arguments, converting numbers and strings as
// needed, and a final *Options parameter receives the options. It may
// return a value, an error or both.
type HelperFunc func(this any, args []any, opts *Options) (any, error)

// DecoratorFunc decorates a program. It returns the program to use in place
// of fn, or nil to keep fn.
type DecoratorFunc func(fn *Program, props *Props, c *Container, opts *Options) (*Program, error)
