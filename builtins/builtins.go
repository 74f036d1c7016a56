// Package builtins defines the default helpers and decorators.
package builtins

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/deepnoodle-ai/hbs/errors"
	"github.com/deepnoodle-ai/hbs/vm"
)

// HelperMissing is called for a mustache that names neither a helper nor a
// value. A bare name renders nothing; a call with arguments is an error.
func HelperMissing(this any, args []any, opts *vm.Options) (any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	return nil, errors.RenderErrorf(errors.E3001, "Missing helper: %q", opts.Name)
}

// BlockHelperMissing renders a block whose name resolved to a value instead
// of a helper. true renders the block once, false and nil render the
// inverse, slices iterate like each and anything else becomes the context
// of the block.
func BlockHelperMissing(this any, args []any, opts *vm.Options) (any, error) {
	var context any
	if len(args) > 0 {
		context = args[0]
	}
	switch c := context.(type) {
	case bool:
		if c {
			return opts.Fn.Exec(this)
		}
		return opts.Inverse.Exec(this)
	case nil:
		return opts.Inverse.Exec(this)
	}
	if vm.IsArray(context) {
		entries, _ := vm.Entries(context)
		if len(entries) == 0 {
			return opts.Inverse.Exec(this)
		}
		if each := opts.Container().Helper("each"); each != nil {
			return vm.Call(each, this, []any{context}, opts)
		}
		return Each(this, []any{context}, opts)
	}
	return opts.Fn.ExecWith(context, &vm.ExecOptions{Data: opts.Data})
}

// Each renders the block once per element of a slice, iterable or object.
// @index, @key, @first and @last describe the current element, which is
// also bound to the first block parameter; the key is bound to the second.
func Each(this any, args []any, opts *vm.Options) (any, error) {
	if len(args) == 0 {
		return nil, errors.RenderErrorf(errors.E3008, "Must pass iterator to #each")
	}
	context, err := vm.ResolveLambda(args[0], this, opts)
	if err != nil {
		return nil, err
	}
	entries, _ := vm.Entries(context)
	if len(entries) == 0 {
		return opts.Inverse.Exec(this)
	}
	var b strings.Builder
	for i, entry := range entries {
		var data *vm.Frame
		if opts.Data != nil {
			data = vm.NewFrame(opts.Data)
			data.Set("key", entry.Key)
			data.Set("index", i)
			data.Set("first", i == 0)
			data.Set("last", i == len(entries)-1)
		}
		out, err := opts.Fn.ExecWith(entry.Value, &vm.ExecOptions{
			Data:        data,
			BlockParams: []any{entry.Value, entry.Key},
		})
		if err != nil {
			return nil, err
		}
		b.WriteString(out)
	}
	return b.String(), nil
}

// If renders the block when its argument is truthy and the inverse
// otherwise. Empty slices are falsy; so is 0 unless includeZero=true.
func If(this any, args []any, opts *vm.Options) (any, error) {
	if len(args) != 1 {
		return nil, errors.RenderErrorf(errors.E3008, "#if requires exactly one argument")
	}
	return conditional(this, args[0], opts.Fn, opts.Inverse, opts)
}

// Unless is If with the block and the inverse swapped.
func Unless(this any, args []any, opts *vm.Options) (any, error) {
	if len(args) != 1 {
		return nil, errors.RenderErrorf(errors.E3008, "#unless requires exactly one argument")
	}
	return conditional(this, args[0], opts.Inverse, opts.Fn, opts)
}

func conditional(this, value any, fn, inverse *vm.Program, opts *vm.Options) (any, error) {
	value, err := vm.ResolveLambda(value, this, opts)
	if err != nil {
		return nil, err
	}
	includeZero := vm.IsTruthy(opts.HashValue("includeZero"))
	if (!includeZero && !vm.IsTruthy(value)) || vm.IsEmpty(value) {
		return inverse.Exec(this)
	}
	return fn.Exec(this)
}

// With renders the block with its argument as the context, or the inverse
// when the argument is empty.
func With(this any, args []any, opts *vm.Options) (any, error) {
	if len(args) != 1 {
		return nil, errors.RenderErrorf(errors.E3008, "#with requires exactly one argument")
	}
	context, err := vm.ResolveLambda(args[0], this, opts)
	if err != nil {
		return nil, err
	}
	if vm.IsEmpty(context) {
		return opts.Inverse.Exec(this)
	}
	return opts.Fn.ExecWith(context, &vm.ExecOptions{
		Data:        opts.Data,
		BlockParams: []any{context},
	})
}

// Lookup reads a property whose name is computed at render time.
func Lookup(this any, args []any, opts *vm.Options) (any, error) {
	if len(args) < 2 {
		return nil, errors.RenderErrorf(errors.E3008, "lookup requires an object and a field")
	}
	obj := args[0]
	if !vm.IsTruthy(obj) {
		return obj, nil
	}
	return opts.LookupProperty(obj, vm.ToString(args[1])), nil
}

var levels = []zerolog.Level{zerolog.DebugLevel, zerolog.InfoLevel, zerolog.WarnLevel, zerolog.ErrorLevel}

var levelNames = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// Log writes its arguments to the render's logger. The level comes from
// level=, then @level, and defaults to info.
func Log(this any, args []any, opts *vm.Options) (any, error) {
	level := 1
	if l := opts.HashValue("level"); l != nil {
		level = lookupLevel(l)
	} else if opts.Data != nil {
		if l, ok := opts.Data.Get("level"); ok && l != nil {
			level = lookupLevel(l)
		}
	}
	if level < 0 || level >= len(levels) {
		return nil, nil
	}
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = vm.ToString(arg)
	}
	opts.Logger().WithLevel(levels[level]).
		Str("helper", "log").
		Msg(strings.Join(parts, " "))
	return nil, nil
}

func lookupLevel(v any) int {
	s := strings.ToLower(vm.ToString(v))
	if n, ok := levelNames[s]; ok {
		return n
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return 1
}

// Inline registers the block of {{#*inline "name"}} as a partial visible to
// the program it decorates.
func Inline(fn *vm.Program, props *vm.Props, c *vm.Container, opts *vm.Options) (*vm.Program, error) {
	if len(opts.Args) == 0 {
		return nil, errors.RenderErrorf(errors.E3008, "inline requires a partial name")
	}
	ret := fn
	if props.Partials == nil {
		props.Partials = map[string]any{}
		ret = vm.NewProgram(func(context any, eo *vm.ExecOptions) (string, error) {
			original := c.Partials()
			merged := make(map[string]any, len(original)+len(props.Partials))
			for name, p := range original {
				merged[name] = p
			}
			for name, p := range props.Partials {
				merged[name] = p
			}
			c.SetPartials(merged)
			defer c.SetPartials(original)
			return fn.ExecWith(context, eo)
		})
	}
	props.Partials[vm.ToString(opts.Args[0])] = opts.Fn
	return ret, nil
}

// Helpers returns the built-in helpers keyed by name.
func Helpers() map[string]any {
	return map[string]any{
		"helperMissing":      vm.HelperFunc(HelperMissing),
		"blockHelperMissing": vm.HelperFunc(BlockHelperMissing),
		"each":               vm.HelperFunc(Each),
		"if":                 vm.HelperFunc(If),
		"unless":             vm.HelperFunc(Unless),
		"with":               vm.HelperFunc(With),
		"lookup":             vm.HelperFunc(Lookup),
		"log":                vm.HelperFunc(Log),
	}
}

// Decorators returns the built-in decorators keyed by name.
func Decorators() map[string]any {
	return map[string]any{
		"inline": vm.DecoratorFunc(Inline),
	}
}
