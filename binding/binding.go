// Package binding exposes the cffi bridge to a host runtime as a set of
// namespaced builtins operating on dynamic values:
//
//	import_lib(path)                                  -> library
//	lib.import_func(library, name)                    -> callable
//	lib.import_func_s(library, name, ret, args...)    -> callable
//	lib.close(library)
//	callable.close(callable)
//	utils.make_integer(ptr), utils.make_string(ptr), utils.is_nullptr(v)
//	types.void, types.pointer, ... types.string
//
// Libraries, callables and types travel through the host as opaque values.
package binding

import (
	"sort"

	"github.com/covscript/stdutils/cffi"
	"github.com/covscript/stdutils/errors"
	"github.com/covscript/stdutils/value"
)

// A host argument had the wrong count or kind.
const BadArgument errors.Kind = "BadArgument"

// Builtin is the host calling convention.
type Builtin func(args []value.Value) (value.Value, error)

// Callable is what the lib.import_func* builtins return.  Both cffi
// dispatchers implement it.
type Callable interface {
	Invoke(args ...value.Value) (value.Value, error)
	Close()
}

const typesNamespace = "types."

// Module is the builtin table handed to the host.
type Module struct {
	options   cffi.Options
	builtins  map[string]Builtin
	constants map[string]value.Value
}

// Libraries opened through the module use options.
func New(options cffi.Options) *Module {
	m := &Module{
		options:   options,
		builtins:  make(map[string]Builtin),
		constants: make(map[string]value.Value),
	}

	m.builtins["import_lib"] = m.importLib
	m.builtins["lib.import_func"] = m.importFunc
	m.builtins["lib.import_func_s"] = m.importFuncS
	m.builtins["lib.close"] = m.closeLib
	m.builtins["callable.close"] = m.closeCallable
	m.builtins["utils.make_integer"] = makeInteger
	m.builtins["utils.make_string"] = makeString
	m.builtins["utils.is_nullptr"] = isNullptr

	for name, t := range cffi.ExportedTypes() {
		m.constants[typesNamespace+name] = value.Opaque(t)
	}
	return m
}

// Returns every builtin and constant name, sorted.
func (m *Module) Names() []string {
	names := make([]string, 0, len(m.builtins)+len(m.constants))
	for name := range m.builtins {
		names = append(names, name)
	}
	for name := range m.constants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Module) Lookup(name string) (Builtin, bool) {
	b, ok := m.builtins[name]
	return b, ok
}

// Returns a types.* constant.
func (m *Module) Constant(name string) (value.Value, bool) {
	v, ok := m.constants[name]
	return v, ok
}

// Calls the builtin registered under name.
func (m *Module) Call(name string, args ...value.Value) (value.Value, error) {
	b, ok := m.builtins[name]
	if !ok {
		return value.Null(), errors.NewKindf(
			BadArgument,
			"no builtin named %s",
			name)
	}
	return b(args)
}

// Invokes a callable produced by lib.import_func or lib.import_func_s.
func (m *Module) Invoke(callable value.Value, args ...value.Value) (value.Value, error) {
	c, err := callableArg("invoke", callable)
	if err != nil {
		return value.Null(), err
	}
	return c.Invoke(args...)
}

//
// Builtins
//

func (m *Module) importLib(args []value.Value) (value.Value, error) {
	if err := checkArity("import_lib", args, 1); err != nil {
		return value.Null(), err
	}
	path, err := stringArg("import_lib", args[0])
	if err != nil {
		return value.Null(), err
	}

	lib, err := cffi.OpenWithOptions(path, m.options)
	if err != nil {
		return value.Null(), err
	}
	return value.Opaque(lib), nil
}

func (m *Module) importFunc(args []value.Value) (value.Value, error) {
	if err := checkArity("lib.import_func", args, 2); err != nil {
		return value.Null(), err
	}
	lib, err := libraryArg("lib.import_func", args[0])
	if err != nil {
		return value.Null(), err
	}
	name, err := stringArg("lib.import_func", args[1])
	if err != nil {
		return value.Null(), err
	}

	d, err := lib.BindInferred(name)
	if err != nil {
		return value.Null(), err
	}
	return value.Opaque(Callable(d)), nil
}

func (m *Module) importFuncS(args []value.Value) (value.Value, error) {
	if len(args) < 3 {
		return value.Null(), errors.NewKindf(
			BadArgument,
			"lib.import_func_s expects at least 3 arguments, got %d",
			len(args))
	}
	lib, err := libraryArg("lib.import_func_s", args[0])
	if err != nil {
		return value.Null(), err
	}
	name, err := stringArg("lib.import_func_s", args[1])
	if err != nil {
		return value.Null(), err
	}
	ret, err := typeArg("lib.import_func_s", args[2])
	if err != nil {
		return value.Null(), err
	}

	argTypes := make([]cffi.NativeType, 0, len(args)-3)
	for _, arg := range args[3:] {
		t, err := typeArg("lib.import_func_s", arg)
		if err != nil {
			return value.Null(), err
		}
		argTypes = append(argTypes, t)
	}

	d, err := lib.BindTyped(name, ret, argTypes...)
	if err != nil {
		return value.Null(), err
	}
	return value.Opaque(Callable(d)), nil
}

func (m *Module) closeLib(args []value.Value) (value.Value, error) {
	if err := checkArity("lib.close", args, 1); err != nil {
		return value.Null(), err
	}
	lib, err := libraryArg("lib.close", args[0])
	if err != nil {
		return value.Null(), err
	}
	lib.Close()
	return value.Null(), nil
}

func (m *Module) closeCallable(args []value.Value) (value.Value, error) {
	if err := checkArity("callable.close", args, 1); err != nil {
		return value.Null(), err
	}
	c, err := callableArg("callable.close", args[0])
	if err != nil {
		return value.Null(), err
	}
	c.Close()
	return value.Null(), nil
}

func makeInteger(args []value.Value) (value.Value, error) {
	if err := checkArity("utils.make_integer", args, 1); err != nil {
		return value.Null(), err
	}
	return cffi.MakeInteger(args[0])
}

func makeString(args []value.Value) (value.Value, error) {
	if err := checkArity("utils.make_string", args, 1); err != nil {
		return value.Null(), err
	}
	return cffi.MakeString(args[0])
}

func isNullptr(args []value.Value) (value.Value, error) {
	if err := checkArity("utils.is_nullptr", args, 1); err != nil {
		return value.Null(), err
	}
	return value.Bool(cffi.IsNullptr(args[0])), nil
}
