// Package hbs compiles and renders Handlebars templates.
//
// Templates are parsed, stripped of standalone whitespace, compiled to an
// opcode program and then to bytecode that the vm package executes:
//
//	tmpl := hbs.Compile("Hello {{name}}!")
//	out, err := tmpl.Render(ctx, map[string]any{"name": "World"})
//
// Helpers, partials and decorators are registered on an Env. The package
// level functions use Default, which has the built-in helpers registered.
// Compiled templates can be serialized with Precompile and bound to an Env
// again with Load.
package hbs

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/deepnoodle-ai/hbs/store"
)

// Compile returns a template for source bound to the default Env.
func Compile(source string, opts ...Option) *Template {
	return defaultEnv.Compile(source, opts...)
}

// Render compiles source and renders it with the default Env.
func Render(ctx context.Context, source string, value any, opts ...Option) (string, error) {
	return defaultEnv.Render(ctx, source, value, opts...)
}

// Precompile serializes source compiled with opts.
func Precompile(source string, opts ...Option) ([]byte, error) {
	return defaultEnv.Precompile(source, opts...)
}

// Load binds a precompiled artifact to the default Env.
func Load(data []byte) (*Template, error) {
	return defaultEnv.Load(data)
}

// RegisterHelper registers a helper on the default Env.
func RegisterHelper(name string, fn any) error {
	return defaultEnv.RegisterHelper(name, fn)
}

// RegisterPartial registers a partial on the default Env.
func RegisterPartial(name string, partial any) error {
	return defaultEnv.RegisterPartial(name, partial)
}

// RegisterDecorator registers a decorator on the default Env.
func RegisterDecorator(name string, fn any) error {
	return defaultEnv.RegisterDecorator(name, fn)
}

// CompileCached returns the template for source, loading it from s when a
// compatible artifact is cached and compiling and storing it otherwise.
// Cached artifacts that no longer load are replaced.
func (e *Env) CompileCached(ctx context.Context, s store.Store, source string, opts ...Option) (*Template, error) {
	cfg := newConfig(opts...)
	key, err := store.Key(source, &cfg.compile)
	if err != nil {
		return nil, err
	}
	data, err := s.Get(ctx, key)
	switch {
	case err == nil:
		t, loadErr := e.Load(data)
		if loadErr == nil {
			return t, nil
		}
		logger := e.Logger()
		logger.Warn().Err(loadErr).Str("key", key).Msg("discarding cached template")
	case !stderrors.Is(err, store.ErrNotFound):
		return nil, err
	}

	t := e.Compile(source, opts...)
	code, err := t.Precompile()
	if err != nil {
		return nil, err
	}
	if err := s.Put(ctx, key, code); err != nil {
		return nil, fmt.Errorf("caching template: %w", err)
	}
	return t, nil
}
