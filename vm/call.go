package vm

import (
	"fmt"
	"reflect"
)

var (
	optionsType = reflect.TypeOf((*Options)(nil))
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// IsFunction reports whether v can be called as a helper or lambda.
func IsFunction(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case HelperFunc:
		return v != nil
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Func && !rv.IsNil()
}

// Call invokes fn as a helper.
func Call(fn any, this any, args []any, opts *Options) (any, error) {
	switch f := fn.(type) {
	case HelperFunc:
		return f(this, args, opts)
	case func(any, []any, *Options) (any, error):
		return f(this, args, opts)
	case func() any:
		return f(), nil
	case func() string:
		return f(), nil
	}
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return nil, fmt.Errorf("%T is not a function", fn)
	}
	return callReflect(rv, args, opts)
}

// ResolveLambda calls v with no arguments when it is a function and returns
// the result; other values are returned unchanged.
func ResolveLambda(v any, this any, opts *Options) (any, error) {
	if !IsFunction(v) {
		return v, nil
	}
	return Call(v, this, nil, opts)
}

func callReflect(fn reflect.Value, args []any, opts *Options) (any, error) {
	t := fn.Type()
	n := t.NumIn()
	wantOpts := n > 0 && t.In(n-1) == optionsType
	if wantOpts {
		n--
	}
	fixed := n
	if t.IsVariadic() {
		fixed--
	}
	if !t.IsVariadic() && len(args) > n {
		return nil, fmt.Errorf("takes %d arguments (%d given)", n, len(args))
	}
	in := make([]reflect.Value, 0, t.NumIn())
	for i := 0; i < fixed; i++ {
		var arg any
		if i < len(args) {
			arg = args[i]
		}
		v, err := convertArg(arg, t.In(i))
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		in = append(in, v)
	}
	if t.IsVariadic() {
		elem := t.In(t.NumIn() - 1).Elem()
		for i := fixed; i < len(args); i++ {
			v, err := convertArg(args[i], elem)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i+1, err)
			}
			in = append(in, v)
		}
	}
	if wantOpts {
		in = append(in, reflect.ValueOf(opts))
	}
	return results(fn.Call(in))
}

func convertArg(arg any, t reflect.Type) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(t), nil
	}
	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	switch {
	case isNumberKind(v.Kind()) && isNumberKind(t.Kind()):
		return v.Convert(t), nil
	case v.Kind() == reflect.String && t.Kind() == reflect.String:
		return v.Convert(t), nil
	case t.Kind() == reflect.String:
		return reflect.ValueOf(ToString(arg)).Convert(t), nil
	case t.Kind() == reflect.Bool:
		return reflect.ValueOf(IsTruthy(arg)).Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", arg, t)
}

func isNumberKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func results(out []reflect.Value) (any, error) {
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if out[0].Type() == errorType {
			if err, _ := out[0].Interface().(error); err != nil {
				return nil, err
			}
			return nil, nil
		}
		return out[0].Interface(), nil
	case 2:
		var err error
		if out[1].Type() == errorType {
			err, _ = out[1].Interface().(error)
		}
		if err != nil {
			return nil, err
		}
		return out[0].Interface(), nil
	}
	return nil, fmt.Errorf("helper returns %d values", len(out))
}

func callDecorator(fn any, prog *Program, props *Props, c *Container, opts *Options) (*Program, error) {
	switch f := fn.(type) {
	case DecoratorFunc:
		return f(prog, props, c, opts)
	case func(*Program, *Props, *Container, *Options) (*Program, error):
		return f(prog, props, c, opts)
	}
	return nil, fmt.Errorf("%T is not a decorator", fn)
}
