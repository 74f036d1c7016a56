package hbs

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/deepnoodle-ai/hbs/ast"
	"github.com/deepnoodle-ai/hbs/builtins"
	"github.com/deepnoodle-ai/hbs/bytecode"
	"github.com/deepnoodle-ai/hbs/compiler"
	"github.com/deepnoodle-ai/hbs/vm"
)

// Env is an isolated set of helpers, partials and decorators, the
// equivalent of a Handlebars environment. Templates compiled by an Env
// render with whatever is registered on it at render time.
//
// An Env is safe for concurrent use.
type Env struct {
	mu         sync.RWMutex
	helpers    map[string]any
	partials   map[string]any
	decorators map[string]any
	logger     zerolog.Logger
	accessLog  *vm.AccessLog

	// compiled partials by name, source and compile options
	partialCache sync.Map
}

// New returns an Env with the built-in helpers and decorators registered.
func New() *Env {
	e := NewEmpty()
	maps.Copy(e.helpers, builtins.Helpers())
	maps.Copy(e.decorators, builtins.Decorators())
	return e
}

// NewEmpty returns an Env with nothing registered.
func NewEmpty() *Env {
	return &Env{
		helpers:    map[string]any{},
		partials:   map[string]any{},
		decorators: map[string]any{},
		logger:     log.Logger.Level(zerolog.InfoLevel),
		accessLog:  vm.DefaultAccessLog,
	}
}

var defaultEnv = New()

// Default returns the process wide Env used by the package level functions.
func Default() *Env {
	return defaultEnv
}

// SetLogger sets the logger used for access warnings and the log helper.
func (e *Env) SetLogger(logger zerolog.Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logger = logger
}

// Logger returns the logger of the Env.
func (e *Env) Logger() zerolog.Logger {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.logger
}

// SetAccessLog sets the log of reported access denials. Envs share
// vm.DefaultAccessLog unless given their own.
func (e *Env) SetAccessLog(l *vm.AccessLog) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.accessLog = l
}

// RegisterHelper registers a helper. fn may be a vm.HelperFunc or any Go
// function; see vm.HelperFunc for how arguments are bound.
func (e *Env) RegisterHelper(name string, fn any) error {
	if !vm.IsFunction(fn) {
		return fmt.Errorf("helper %q: %T is not a function", name, fn)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.helpers[name] = fn
	return nil
}

// RegisterHelpers registers every helper in helpers.
func (e *Env) RegisterHelpers(helpers map[string]any) error {
	var result error
	for _, name := range sortedKeys(helpers) {
		if err := e.RegisterHelper(name, helpers[name]); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

// UnregisterHelper removes a helper.
func (e *Env) UnregisterHelper(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.helpers, name)
}

// Helper returns the helper registered under name, or nil.
func (e *Env) Helper(name string) any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.helpers[name]
}

// RegisterPartial registers a partial. It may be template source, a parsed
// *ast.Program, a *Template, a compiled *bytecode.Template, a *vm.Program or
// a vm.ProgramFunc. Source and ASTs are compiled on first use with the
// compile options of the template that invokes them.
func (e *Env) RegisterPartial(name string, partial any) error {
	switch partial.(type) {
	case string, *ast.Program, *Template, *bytecode.Template, *vm.Program, vm.ProgramFunc:
	default:
		return fmt.Errorf("partial %q: unsupported type %T", name, partial)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.partials[name] = partial
	return nil
}

// RegisterPartials registers every partial in partials.
func (e *Env) RegisterPartials(partials map[string]any) error {
	var result error
	for _, name := range sortedKeys(partials) {
		if err := e.RegisterPartial(name, partials[name]); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

// UnregisterPartial removes a partial.
func (e *Env) UnregisterPartial(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.partials, name)
}

// Partial returns the partial registered under name, or nil.
func (e *Env) Partial(name string) any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.partials[name]
}

// RegisterDecorator registers a decorator.
func (e *Env) RegisterDecorator(name string, fn any) error {
	switch fn.(type) {
	case vm.DecoratorFunc, func(*vm.Program, *vm.Props, *vm.Container, *vm.Options) (*vm.Program, error):
	default:
		return fmt.Errorf("decorator %q: %T is not a decorator", name, fn)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.decorators[name] = fn
	return nil
}

// UnregisterDecorator removes a decorator.
func (e *Env) UnregisterDecorator(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.decorators, name)
}

// Compile returns a template for source. Compilation happens on the first
// render or call to Bytecode, and errors are reported then.
func (e *Env) Compile(source string, opts ...Option) *Template {
	cfg := newConfig(opts...)
	return &Template{
		env:      e,
		source:   source,
		filename: cfg.filename,
		opts:     cfg.compile.Clone(),
	}
}

// CompileAST returns a template for a parsed AST. Whitespace control is
// applied to root in place.
func (e *Env) CompileAST(root *ast.Program, opts ...Option) *Template {
	cfg := newConfig(opts...)
	return &Template{
		env:      e,
		root:     root,
		filename: cfg.filename,
		opts:     cfg.compile.Clone(),
	}
}

// CompileAll compiles every source eagerly. Templates that compiled are
// returned even when others failed; the error lists every failure.
func (e *Env) CompileAll(sources map[string]string, opts ...Option) (map[string]*Template, error) {
	templates := make(map[string]*Template, len(sources))
	var result error
	for _, name := range sortedKeys(sources) {
		t := e.Compile(sources[name], append(append([]Option{}, opts...), WithFilename(name))...)
		if _, err := t.Bytecode(); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		templates[name] = t
	}
	return templates, result
}

// Render compiles source and renders it with value as the context.
func (e *Env) Render(ctx context.Context, source string, value any, opts ...Option) (string, error) {
	return e.Compile(source, opts...).Render(ctx, value, opts...)
}

// Precompile compiles source into a serialized artifact that Load turns
// back into a template.
func (e *Env) Precompile(source string, opts ...Option) ([]byte, error) {
	code, err := e.Compile(source, opts...).Bytecode()
	if err != nil {
		return nil, err
	}
	return bytecode.Marshal(code)
}

// Load binds a precompiled artifact to the Env. The artifact's revision is
// checked before anything else is decoded.
func (e *Env) Load(data []byte) (*Template, error) {
	rev, err := bytecode.PeekRevision(data)
	if err != nil {
		return nil, err
	}
	if err := vm.CheckRevision(rev); err != nil {
		return nil, err
	}
	code, err := bytecode.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return e.bind(code), nil
}

// bind wraps an already compiled template.
func (e *Env) bind(code *bytecode.Template) *Template {
	t := &Template{
		env:      e,
		source:   code.Source(),
		filename: code.Filename(),
		opts:     code.Options(),
		code:     code,
	}
	t.once.Do(func() {})
	return t
}

// renderOptions combines the registrations of the Env with the options of
// one render.
func (e *Env) renderOptions(cfg *config) []vm.Option {
	e.mu.RLock()
	helpers := maps.Clone(e.helpers)
	partials := maps.Clone(e.partials)
	decorators := maps.Clone(e.decorators)
	logger := e.logger
	accessLog := e.accessLog
	e.mu.RUnlock()

	maps.Copy(helpers, cfg.helpers)
	maps.Copy(partials, cfg.partials)
	maps.Copy(decorators, cfg.decorators)
	if cfg.logger != nil {
		logger = *cfg.logger
	}
	opts := []vm.Option{
		vm.WithHelpers(helpers),
		vm.WithPartials(partials),
		vm.WithDecorators(decorators),
		vm.WithAccessPolicy(cfg.policy),
		vm.WithHelperMissingCalls(cfg.allowHelperMissing),
		vm.WithLogger(logger),
		vm.WithAccessLog(accessLog),
		vm.WithPartialCompiler(e.compilePartial),
	}
	if cfg.data != nil {
		opts = append(opts, vm.WithData(cfg.data))
	}
	if cfg.blockParams != nil {
		opts = append(opts, vm.WithBlockParams(cfg.blockParams))
	}
	if cfg.depths != nil {
		opts = append(opts, vm.WithDepths(cfg.depths))
	}
	if cfg.observer != nil {
		opts = append(opts, vm.WithObserver(cfg.observer))
	}
	return opts
}

type partialKey struct {
	name    string
	source  string
	root    *ast.Program
	options string
}

// compilePartial compiles a partial registered as source or AST with the
// options of the invoking template. Results are cached on the Env.
func (e *Env) compilePartial(name string, partial any, opts *compiler.Options) (*bytecode.Template, error) {
	optsKey, err := json.Marshal(opts)
	if err != nil {
		return nil, err
	}
	key := partialKey{name: name, options: string(optsKey)}
	switch p := partial.(type) {
	case *Template:
		return p.Bytecode()
	case string:
		key.source = p
	case *ast.Program:
		key.root = p
	default:
		return nil, fmt.Errorf("partial %s: cannot compile %T", name, partial)
	}
	if cached, ok := e.partialCache.Load(key); ok {
		return cached.(*Template).Bytecode()
	}
	t := &Template{
		env:      e,
		source:   key.source,
		root:     key.root,
		filename: name,
		opts:     opts.Clone(),
	}
	cached, _ := e.partialCache.LoadOrStore(key, t)
	return cached.(*Template).Bytecode()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
