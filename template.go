package hbs

import (
	"context"
	"sync"

	"github.com/deepnoodle-ai/hbs/ast"
	"github.com/deepnoodle-ai/hbs/bytecode"
	"github.com/deepnoodle-ai/hbs/codegen"
	"github.com/deepnoodle-ai/hbs/compiler"
	"github.com/deepnoodle-ai/hbs/parser"
	"github.com/deepnoodle-ai/hbs/vm"
	"github.com/deepnoodle-ai/hbs/whitespace"
)

// Template is a template bound to an Env. It compiles once, on first use,
// and is safe for concurrent rendering afterwards.
type Template struct {
	env      *Env
	source   string
	root     *ast.Program
	filename string
	opts     *compiler.Options

	once sync.Once
	code *bytecode.Template
	err  error
}

// stripMu serializes whitespace control on caller supplied ASTs, which is
// applied in place.
var stripMu sync.Mutex

// Source returns the template source, if it was compiled from source.
func (t *Template) Source() string {
	return t.source
}

// Filename returns the name given with WithFilename.
func (t *Template) Filename() string {
	return t.filename
}

// Options returns a copy of the compile options.
func (t *Template) Options() *compiler.Options {
	return t.opts.Clone()
}

// Env returns the Env the template renders with.
func (t *Template) Env() *Env {
	return t.env
}

// Bytecode compiles the template if needed and returns the compiled form.
func (t *Template) Bytecode() (*bytecode.Template, error) {
	t.once.Do(func() {
		t.code, t.err = t.compile()
	})
	return t.code, t.err
}

func (t *Template) compile() (*bytecode.Template, error) {
	root := t.root
	if root == nil {
		var err error
		root, err = parser.Parse(context.Background(), t.source, parser.WithFilename(t.filename))
		if err != nil {
			return nil, err
		}
		whitespace.Strip(root, whitespace.Options{IgnoreStandalone: t.opts.IgnoreStandalone})
	} else {
		stripMu.Lock()
		whitespace.Strip(root, whitespace.Options{IgnoreStandalone: t.opts.IgnoreStandalone})
		stripMu.Unlock()
	}
	prog, err := compiler.Compile(root, &compiler.Config{
		Options:  t.opts,
		Filename: t.filename,
		Source:   t.source,
	})
	if err != nil {
		return nil, err
	}
	return codegen.Generate(prog, &codegen.Config{
		Options:  t.opts,
		Filename: t.filename,
		Source:   t.source,
	})
}

// Render executes the template with value as the root context. Render
// options add to what is registered on the Env; compile options are
// ignored.
func (t *Template) Render(ctx context.Context, value any, opts ...Option) (string, error) {
	code, err := t.Bytecode()
	if err != nil {
		return "", err
	}
	cfg := newConfig(opts...)
	return vm.Render(ctx, code, value, t.env.renderOptions(cfg)...)
}

// MustRender is like Render but panics on error.
func (t *Template) MustRender(ctx context.Context, value any, opts ...Option) string {
	out, err := t.Render(ctx, value, opts...)
	if err != nil {
		panic(err)
	}
	return out
}

// Precompile returns the serialized compiled template.
func (t *Template) Precompile() ([]byte, error) {
	code, err := t.Bytecode()
	if err != nil {
		return nil, err
	}
	return bytecode.Marshal(code)
}
