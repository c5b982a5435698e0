package binding

import (
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/covscript/stdutils/cffi"
	"github.com/covscript/stdutils/errors"
	"github.com/covscript/stdutils/value"
)

// The manifest could not be parsed or declares something unbindable.
const BadManifest errors.Kind = "BadManifest"

// Manifest declares one library and the functions to bind from it:
//
//	library: libc.so.6
//	functions:
//	  - name: abs
//	    returns: sint
//	    args: [sint]
//	  - name: srand
//	    inferred: true
type Manifest struct {
	Library   string             `yaml:"library"`
	Functions []FunctionManifest `yaml:"functions"`
}

type FunctionManifest struct {
	Name string `yaml:"name"`

	// Binds without a signature.  Returns and Args must be empty.
	Inferred bool `yaml:"inferred"`

	// Type names as accepted by cffi.LookupNativeType.  An empty return
	// means void.
	Returns string   `yaml:"returns"`
	Args    []string `yaml:"args"`
}

// Parses and validates a YAML manifest.  Unknown fields are rejected.
func LoadManifest(r io.Reader) (*Manifest, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	manifest := &Manifest{}
	if err := decoder.Decode(manifest); err != nil {
		if err == io.EOF {
			return nil, errors.NewKindf(BadManifest, "manifest is empty")
		}
		return nil, errors.WrapKindf(err, BadManifest, "cannot parse manifest")
	}
	if err := manifest.validate(); err != nil {
		return nil, err
	}
	return manifest, nil
}

func (m *Manifest) Lookup(name string) (FunctionManifest, bool) {
	for _, f := range m.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return FunctionManifest{}, false
}

func (m *Manifest) validate() error {
	if m.Library == "" {
		return errors.NewKindf(BadManifest, "library must be provided")
	}

	seen := make(map[string]bool, len(m.Functions))
	for i, f := range m.Functions {
		if f.Name == "" {
			return errors.NewKindf(BadManifest, "functions[%d] has no name", i)
		}
		if seen[f.Name] {
			return errors.NewKindf(BadManifest, "function %s declared twice", f.Name)
		}
		seen[f.Name] = true

		if f.Inferred {
			if f.Returns != "" || len(f.Args) > 0 {
				return errors.NewKindf(
					BadManifest,
					"function %s is inferred but declares types",
					f.Name)
			}
			continue
		}
		if _, err := f.Signature(); err != nil {
			return err
		}
	}
	return nil
}

// Resolves the declared type names.  Inferred functions have a void, argless
// signature.
func (f FunctionManifest) Signature() (cffi.CallSignature, error) {
	sig := cffi.CallSignature{Return: cffi.Void}
	if f.Returns != "" {
		t, ok := cffi.LookupNativeType(f.Returns)
		if !ok {
			return sig, errors.NewKindf(
				BadManifest,
				"function %s: unknown return type %q",
				f.Name,
				f.Returns)
		}
		sig.Return = t
	}
	for _, name := range f.Args {
		t, ok := cffi.LookupNativeType(name)
		if !ok {
			return sig, errors.NewKindf(
				BadManifest,
				"function %s: unknown argument type %q",
				f.Name,
				name)
		}
		sig.Args = append(sig.Args, t)
	}
	return sig, nil
}

// BoundLibrary is the result of binding a manifest.  The library value has
// already been closed by the binder; the functions keep it mapped until
// Close.
type BoundLibrary struct {
	Path      string
	Functions map[string]value.Value
}

// Returns the bound function names, sorted.
func (b *BoundLibrary) Names() []string {
	names := make([]string, 0, len(b.Functions))
	for name := range b.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Closes every bound function, which unmaps the library.
func (b *BoundLibrary) Close() {
	for _, fn := range b.Functions {
		if o, ok := fn.AsOpaque(); ok {
			if c, ok := o.(Callable); ok {
				c.Close()
			}
		}
	}
}

// Opens the manifest's library and binds every declared function through
// the module's builtins.  Nothing stays bound if any function fails.
func (m *Module) BindManifest(manifest *Manifest) (*BoundLibrary, error) {
	lib, err := m.Call("import_lib", value.String(manifest.Library))
	if err != nil {
		return nil, err
	}
	defer func() { _, _ = m.Call("lib.close", lib) }()

	bound := &BoundLibrary{
		Path:      manifest.Library,
		Functions: make(map[string]value.Value, len(manifest.Functions)),
	}
	for _, f := range manifest.Functions {
		fn, err := m.bindFunction(lib, f)
		if err != nil {
			bound.Close()
			return nil, err
		}
		bound.Functions[f.Name] = fn
	}
	return bound, nil
}

func (m *Module) bindFunction(lib value.Value, f FunctionManifest) (value.Value, error) {
	if f.Inferred {
		return m.Call("lib.import_func", lib, value.String(f.Name))
	}

	sig, err := f.Signature()
	if err != nil {
		return value.Null(), err
	}
	args := []value.Value{lib, value.String(f.Name), value.Opaque(sig.Return)}
	for _, t := range sig.Args {
		args = append(args, value.Opaque(t))
	}
	return m.Call("lib.import_func_s", args...)
}
