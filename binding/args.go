package binding

import (
	"github.com/covscript/stdutils/cffi"
	"github.com/covscript/stdutils/errors"
	"github.com/covscript/stdutils/value"
)

func checkArity(builtin string, args []value.Value, n int) error {
	if len(args) != n {
		return errors.NewKindf(
			BadArgument,
			"%s expects %d arguments, got %d",
			builtin,
			n,
			len(args))
	}
	return nil
}

func badKind(builtin string, expected string, v value.Value) error {
	return errors.NewKindf(
		BadArgument,
		"%s expects a %s, got %s",
		builtin,
		expected,
		v.Kind())
}

func stringArg(builtin string, v value.Value) (string, error) {
	s, ok := v.AsString()
	if !ok {
		return "", badKind(builtin, "string", v)
	}
	return s, nil
}

func libraryArg(builtin string, v value.Value) (*cffi.Library, error) {
	o, _ := v.AsOpaque()
	lib, ok := o.(*cffi.Library)
	if !ok {
		return nil, badKind(builtin, "library", v)
	}
	return lib, nil
}

func callableArg(builtin string, v value.Value) (Callable, error) {
	o, _ := v.AsOpaque()
	c, ok := o.(Callable)
	if !ok {
		return nil, badKind(builtin, "callable", v)
	}
	return c, nil
}

// Accepts a types.* constant or a type name such as "sint64".
func typeArg(builtin string, v value.Value) (cffi.NativeType, error) {
	if o, ok := v.AsOpaque(); ok {
		if t, ok := o.(cffi.NativeType); ok {
			return t, nil
		}
	}
	if name, ok := v.AsString(); ok {
		if t, ok := cffi.LookupNativeType(name); ok {
			return t, nil
		}
		return cffi.Void, errors.NewKindf(
			BadArgument,
			"%s: unknown native type %q",
			builtin,
			name)
	}
	return cffi.Void, badKind(builtin, "native type", v)
}
