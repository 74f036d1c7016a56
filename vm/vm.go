// Package vm renders compiled templates.
//
// A render executes the instruction streams of a bytecode.Template against
// a context value. Each top level render gets a fresh Container holding the
// helpers, partials and decorators in effect; partials render in child
// containers that share the render's state.
package vm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/deepnoodle-ai/hbs/bytecode"
	"github.com/deepnoodle-ai/hbs/errors"
)

const (
	// MaxPartialDepth bounds partial recursion.
	MaxPartialDepth = 512

	// DefaultContextCheckInterval is the number of instructions between
	// checks of ctx.Err(). Set to 0 to disable.
	DefaultContextCheckInterval = 1000
)

// ErrHalted is returned when an observer halts the render.
var ErrHalted = fmt.Errorf("render halted by observer")

// Render executes tmpl with value as the root context and returns the
// output.
//
// The template revision is checked before anything else runs. Rendering
// stops at the first error and no partial output is returned.
func Render(ctx context.Context, tmpl *bytecode.Template, value any, options ...Option) (string, error) {
	if tmpl == nil {
		return "", errors.RenderErrorf(errors.E3005, "nil template")
	}
	if err := CheckRevision(tmpl.Revision()); err != nil {
		return "", err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := newConfig(options)
	state := &renderState{
		ctx:           ctx,
		access:        NewAccessControl(cfg.policy, cfg.accessLog, cfg.logger),
		logger:        cfg.logger,
		compiler:      cfg.compiler,
		checkInterval: cfg.checkInterval,
	}
	if cfg.observer != nil {
		state.observer = cfg.observer
		state.observerCfg = NormalizeConfig(cfg.observer.Config())
	}

	c := newContainer(tmpl, state)
	c.helpers = cfg.helpers
	c.partials = cfg.partials
	c.decorators = cfg.decorators
	c.moveToHooks(helperMissing, cfg.allowHelperMissing)
	c.moveToHooks(blockHelperMissing, cfg.allowHelperMissing)
	return c.render(value, cfg.data, cfg.blockParams, cfg.depths, false)
}

// CheckRevision reports whether a template written with revision rev can
// run on this runtime.
func CheckRevision(rev bytecode.Revision) error {
	n := rev.Number
	if n >= bytecode.LastCompatibleRevision && n <= bytecode.CompilerRevision {
		return nil
	}
	if n < bytecode.LastCompatibleRevision {
		return &errors.RenderError{
			Code: errors.E3004,
			Message: fmt.Sprintf("Template was precompiled with an older version of hbs than the current runtime. "+
				"Please update your precompiler to a newer version (%s) or downgrade your runtime to an older version (%s).",
				revisionName(bytecode.CompilerRevision), revisionName(n)),
		}
	}
	return &errors.RenderError{
		Code: errors.E3004,
		Message: fmt.Sprintf("Template was precompiled with a newer version of hbs than the current runtime. "+
			"Please update your runtime to a newer version (%s).", rev.Version),
	}
}

func revisionName(n int) string {
	if name, ok := bytecode.RevisionChanges[n]; ok {
		return name
	}
	return fmt.Sprintf("revision %d", n)
}

// renderState is shared by every container of one top level render.
type renderState struct {
	ctx      context.Context
	access   *AccessControl
	logger   zerolog.Logger
	compiler PartialCompiler

	observer    Observer
	observerCfg ObserverConfig

	checkInterval int
	steps         int
	lastLine      int
	partialDepth  int
}

func (s *renderState) step(m *machine, ip int) error {
	s.steps++
	if s.checkInterval > 0 && s.steps%s.checkInterval == 0 {
		if err := s.ctx.Err(); err != nil {
			return err
		}
	}
	if s.observer == nil {
		return nil
	}
	loc := m.code.LocationAt(ip)
	switch s.observerCfg.StepMode {
	case StepNone:
		return nil
	case StepSampled:
		if s.steps%s.observerCfg.SampleInterval != 0 {
			return nil
		}
	case StepOnLine:
		if loc.Line == s.lastLine {
			return nil
		}
		s.lastLine = loc.Line
	}
	ok := s.observer.OnStep(StepEvent{
		Program:    m.code.Name(),
		IP:         ip,
		Opcode:     m.code.InstructionAt(ip),
		OpcodeName: m.code.InstructionAt(ip).String(),
		Location:   loc,
		StackDepth: len(m.stack),
	})
	if !ok {
		return ErrHalted
	}
	return nil
}

func (s *renderState) onCall(kind CallKind, name string, argc int, loc bytecode.SourceLocation) error {
	if s.observer == nil || !s.observerCfg.ObserveCalls {
		return nil
	}
	if !s.observer.OnCall(CallEvent{Kind: kind, Name: name, ArgCount: argc, Location: loc, Depth: s.partialDepth}) {
		return ErrHalted
	}
	return nil
}

func (s *renderState) onReturn(kind CallKind, name string, loc bytecode.SourceLocation, failed bool) error {
	if s.observer == nil || !s.observerCfg.ObserveReturns {
		return nil
	}
	if !s.observer.OnReturn(ReturnEvent{Kind: kind, Name: name, Location: loc, Depth: s.partialDepth, Failed: failed}) {
		return ErrHalted
	}
	return nil
}

const (
	helperMissing      = "helperMissing"
	blockHelperMissing = "blockHelperMissing"
)

// Container holds the helpers, partials and decorators of one template
// instance during a render. It is owned by a single render and must not be
// shared between concurrent renders.
type Container struct {
	tmpl       *bytecode.Template
	state      *renderState
	helpers    map[string]any
	partials   map[string]any
	decorators map[string]any
	hooks      map[string]any
	programs   []*Program
}

func newContainer(tmpl *bytecode.Template, state *renderState) *Container {
	return &Container{
		tmpl:     tmpl,
		state:    state,
		hooks:    map[string]any{},
		programs: make([]*Program, tmpl.ProgramCount()),
	}
}

func (c *Container) moveToHooks(name string, keep bool) {
	fn, ok := c.helpers[name]
	if !ok || fn == nil {
		return
	}
	c.hooks[name] = fn
	if !keep {
		delete(c.helpers, name)
	}
}

// Template returns the template the container renders.
func (c *Container) Template() *bytecode.Template { return c.tmpl }

// Helper returns the helper registered under name, or nil.
func (c *Container) Helper(name string) any { return c.helpers[name] }

// Hook returns the helperMissing or blockHelperMissing hook.
func (c *Container) Hook(name string) any { return c.hooks[name] }

// Decorator returns the decorator registered under name, or nil.
func (c *Container) Decorator(name string) any { return c.decorators[name] }

// Partials returns the partials in effect. Programs starting after a call to
// SetPartials see the new map.
func (c *Container) Partials() map[string]any { return c.partials }

// SetPartials replaces the partials in effect.
func (c *Container) SetPartials(partials map[string]any) { c.partials = partials }

// LookupProperty reads property name of parent under the render's access
// control.
func (c *Container) LookupProperty(parent any, name string) any {
	return c.state.access.Lookup(parent, name)
}

// Logger returns the logger of the render.
func (c *Container) Logger() *zerolog.Logger { return &c.state.logger }

// render runs the main program. Partial renders reuse the caller's data
// frame as is; top level renders add @root.
func (c *Container) render(context any, data *Frame, blockParams []any, depths []any, partial bool) (string, error) {
	tmpl := c.tmpl
	if !partial && tmpl.UseData() {
		if _, ok := data.Get("root"); !ok {
			data = NewFrame(data)
			data.Set("root", context)
		}
	}
	var params [][]any
	if tmpl.UseBlockParams() {
		params = [][]any{}
		if blockParams != nil {
			params = append(params, blockParams)
		}
	}
	var ancestors []any
	if tmpl.UseDepths() {
		switch {
		case len(depths) == 0:
			ancestors = []any{context}
		case sameValue(context, depths[0]):
			ancestors = depths
		default:
			ancestors = append([]any{context}, depths...)
		}
	}
	main := &Program{index: -1}
	main.run = func(ctx any, _ *ExecOptions) (string, error) {
		return c.exec(tmpl.Main(), ctx, data, params, ancestors)
	}
	if depths == nil {
		depths = []any{}
	}
	main, err := c.decorate(tmpl.Main(), main, depths, data, params)
	if err != nil {
		return "", err
	}
	return main.Exec(context)
}

// exec runs one program body.
func (c *Container) exec(code *bytecode.Code, context any, data *Frame, blockParams [][]any, depths []any) (string, error) {
	m := &machine{
		c:           c,
		code:        code,
		context:     context,
		partials:    c.partials,
		data:        data,
		blockParams: blockParams,
		depths:      depths,
	}
	return m.run()
}

// program returns the wrapper for child program i. Wrappers that capture
// nothing are cached on the container.
func (c *Container) program(i int, data *Frame, blockParams [][]any, depths []any) (*Program, error) {
	declared := c.tmpl.ProgramAt(i).BlockParams()
	if data != nil || depths != nil || blockParams != nil || declared > 0 {
		return c.wrapProgram(i, data, declared, blockParams, depths)
	}
	if c.programs[i] == nil {
		p, err := c.wrapProgram(i, nil, 0, nil, nil)
		if err != nil {
			return nil, err
		}
		c.programs[i] = p
	}
	return c.programs[i], nil
}

func (c *Container) wrapProgram(i int, data *Frame, declared int, blockParams [][]any, depths []any) (*Program, error) {
	code := c.tmpl.ProgramAt(i)
	prog := &Program{index: i, blockParams: declared}
	prog.run = func(context any, opts *ExecOptions) (string, error) {
		current := depths
		if depths != nil && (len(depths) == 0 ||
			(!sameValue(context, depths[0]) && !(context == NullContext && depths[0] == nil))) {
			current = make([]any, 0, len(depths)+1)
			current = append(current, context)
			current = append(current, depths...)
		}
		frame := data
		if opts.Data != nil {
			frame = opts.Data
		}
		var params [][]any
		if blockParams != nil {
			params = make([][]any, 0, len(blockParams)+1)
			params = append(params, opts.BlockParams)
			params = append(params, blockParams...)
		}
		return c.exec(code, context, frame, params, current)
	}
	decorated, err := c.decorate(code, prog, depths, data, blockParams)
	if err != nil {
		return nil, err
	}
	decorated.index = i
	decorated.blockParams = declared
	return decorated, nil
}

// decorate runs the decorator stream of code, if any, over prog.
func (c *Container) decorate(code *bytecode.Code, prog *Program, depths []any, data *Frame, blockParams [][]any) (*Program, error) {
	stream := code.Decorators()
	if stream == nil {
		return prog, nil
	}
	var context any
	if len(depths) > 0 {
		context = depths[0]
	}
	m := &machine{
		c:           c,
		code:        stream,
		context:     context,
		partials:    c.partials,
		data:        data,
		blockParams: blockParams,
		depths:      depths,
		fn:          prog,
		props:       &Props{},
	}
	if _, err := m.run(); err != nil {
		return nil, err
	}
	if m.props.Partials != nil {
		m.fn.partials = m.props.Partials
	}
	return m.fn, nil
}
