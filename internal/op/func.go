package op

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/vk/lazyflow/internal/errs"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Func is a Go function marked for deferred execution. It is immutable after
// Define returns, except for the input types which are inferred once when
// they were not declared.
type Func struct {
	name      string
	version   string
	cacheable bool

	fn         reflect.Value
	takesCtx   bool
	returnsErr bool
	params     []reflect.Type
	output     reflect.Type

	inferOnce  sync.Once
	mu         sync.RWMutex
	inputTypes []reflect.Type
}

// FuncOption configures a Func at definition time.
type FuncOption func(*Func)

// WithVersion sets the version that takes part in the cache fingerprint and
// the published identity.
func WithVersion(version string) FuncOption {
	return func(f *Func) { f.version = version }
}

// WithCache enables result caching for operations of this function.
func WithCache(enabled bool) FuncOption {
	return func(f *Func) { f.cacheable = enabled }
}

// WithInputTypes declares the input types instead of inferring them from the
// first call.
func WithInputTypes(types ...reflect.Type) FuncOption {
	return func(f *Func) {
		f.inputTypes = append([]reflect.Type(nil), types...)
		f.inferOnce.Do(func() {})
	}
}

// WithOutputType overrides the output type derived from the signature.
func WithOutputType(t reflect.Type) FuncOption {
	return func(f *Func) { f.output = t }
}

// Define marks fn for deferred execution under the given name.
//
// Accepted shapes are func([ctx,] args...) with results (), (error), (T) or
// (T, error). Variadic functions are rejected.
func Define(name string, fn any, opts ...FuncOption) (*Func, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errs.Usage("function name must not be empty")
	}
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return nil, errs.Usage("%s: expected a function, got %T", name, fn)
	}
	t := v.Type()
	if t.IsVariadic() {
		return nil, errs.Usage("%s: variadic functions are not supported", name)
	}

	f := &Func{name: name, fn: v}

	for i := 0; i < t.NumIn(); i++ {
		in := t.In(i)
		if i == 0 && in == contextType {
			f.takesCtx = true
			continue
		}
		f.params = append(f.params, in)
	}

	switch t.NumOut() {
	case 0:
	case 1:
		if t.Out(0) == errorType {
			f.returnsErr = true
		} else {
			f.output = t.Out(0)
		}
	case 2:
		if t.Out(1) != errorType {
			return nil, errs.Usage("%s: second result must be error, got %s", name, t.Out(1))
		}
		f.output = t.Out(0)
		f.returnsErr = true
	default:
		return nil, errs.Usage("%s: too many results (%d)", name, t.NumOut())
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.inputTypes != nil {
		if err := f.checkAssignable(f.inputTypes); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// MustDefine is like Define but panics on error. It is meant for package
// level declarations.
func MustDefine(name string, fn any, opts ...FuncOption) *Func {
	f, err := Define(name, fn, opts...)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Func) Name() string    { return f.name }
func (f *Func) Version() string { return f.version }
func (f *Func) Cacheable() bool { return f.cacheable }

// Identity is the name the function is published and cached under.
func (f *Func) Identity() string {
	if f.version == "" {
		return f.name
	}
	return f.name + "@" + f.version
}

// Params returns the Go parameter types, without the leading context.
func (f *Func) Params() []reflect.Type {
	return append([]reflect.Type(nil), f.params...)
}

// OutputType returns the declared output type, or nil for functions that
// produce no value.
func (f *Func) OutputType() reflect.Type { return f.output }

// InputTypes returns the declared or inferred input types. The boolean is
// false while nothing has been declared or inferred yet.
func (f *Func) InputTypes() ([]reflect.Type, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.inputTypes == nil {
		return nil, false
	}
	return append([]reflect.Type(nil), f.inputTypes...), true
}

// ResolveInputTypes validates the effective argument types of one call
// against the signature. When the input types are undeclared, the first
// successful call fixes them.
func (f *Func) ResolveInputTypes(argTypes []reflect.Type) ([]reflect.Type, error) {
	if len(argTypes) != len(f.params) {
		return nil, errs.Usage("%s: expected %d arguments, got %d", f.name, len(f.params), len(argTypes))
	}
	effective := make([]reflect.Type, len(argTypes))
	for i, at := range argTypes {
		if at == nil {
			at = f.params[i]
		}
		effective[i] = at
	}
	if err := f.checkAssignable(effective); err != nil {
		return nil, err
	}

	f.inferOnce.Do(func() {
		f.mu.Lock()
		f.inputTypes = effective
		f.mu.Unlock()
	})
	return effective, nil
}

func (f *Func) checkAssignable(types []reflect.Type) error {
	if len(types) != len(f.params) {
		return errs.Usage("%s: expected %d input types, got %d", f.name, len(f.params), len(types))
	}
	for i, at := range types {
		if !compatible(at, f.params[i]) {
			return errs.Usage("%s: argument %d of type %s is not assignable to %s", f.name, i, at, f.params[i])
		}
	}
	return nil
}

func compatible(from, to reflect.Type) bool {
	if from == nil {
		return true
	}
	return from.AssignableTo(to) || (to.Kind() == reflect.Interface && from.Implements(to))
}

// Invoke calls the function with already resolved arguments. Panics are
// recovered and returned as errors.
func (f *Func) Invoke(ctx context.Context, args []any) (out any, err error) {
	if len(args) != len(f.params) {
		return nil, errs.Usage("%s: expected %d arguments, got %d", f.name, len(f.params), len(args))
	}

	callArgs := make([]reflect.Value, 0, len(args)+1)
	if f.takesCtx {
		callArgs = append(callArgs, reflect.ValueOf(ctx))
	}
	for i, a := range args {
		v, convErr := coerce(a, f.params[i])
		if convErr != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", f.name, i, convErr)
		}
		callArgs = append(callArgs, v)
	}

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("%s panicked: %v\n%s", f.name, r, debug.Stack())
		}
	}()

	results := f.fn.Call(callArgs)
	if f.returnsErr {
		if e := results[len(results)-1].Interface(); e != nil {
			return nil, e.(error)
		}
	}
	if f.output == nil || len(results) == 0 || results[0].Type() == errorType {
		return nil, nil
	}
	return results[0].Interface(), nil
}

// coerce turns a resolved argument into a value of the parameter type,
// converting between numeric kinds when a codec widened or narrowed them.
func coerce(a any, param reflect.Type) (reflect.Value, error) {
	if a == nil {
		return reflect.Zero(param), nil
	}
	v := reflect.ValueOf(a)
	switch {
	case v.Type().AssignableTo(param):
		return v, nil
	case v.Type().ConvertibleTo(param) && sameFamily(v.Kind(), param.Kind()):
		return v.Convert(param), nil
	}
	return reflect.Value{}, errors.New("cannot use " + v.Type().String() + " as " + param.String())
}

func sameFamily(a, b reflect.Kind) bool {
	return numeric(a) && numeric(b) || a == b
}

func numeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
