//go:build cgo && linux
// +build cgo,linux

package binding

import (
	"strings"

	. "gopkg.in/check.v1"

	"github.com/covscript/stdutils/cffi"
	. "github.com/covscript/stdutils/gocheck2"
	"github.com/covscript/stdutils/stats"
	"github.com/covscript/stdutils/value"
)

type LibcSuite struct {
	stats  *stats.MemoryStatsFactory
	module *Module
}

var _ = Suite(&LibcSuite{})

func (s *LibcSuite) SetUpTest(c *C) {
	s.stats = stats.NewMemoryStatsFactory()
	s.module = New(cffi.Options{Stats: s.stats})
}

func (s *LibcSuite) call(c *C, name string, args ...value.Value) value.Value {
	v, err := s.module.Call(name, args...)
	c.Assert(err, IsNil)
	return v
}

func (s *LibcSuite) typ(c *C, name string) value.Value {
	v, ok := s.module.Constant("types." + name)
	c.Assert(ok, IsTrue)
	return v
}

func (s *LibcSuite) TestTypedRoundTrip(c *C) {
	lib := s.call(c, "import_lib", value.String("libc.so.6"))
	c.Assert(lib.String(), Equals, "library(libc.so.6)")
	defer s.call(c, "lib.close", lib)

	abs := s.call(c, "lib.import_func_s",
		lib, value.String("abs"), s.typ(c, "sint"), s.typ(c, "sint"))
	defer s.call(c, "callable.close", abs)

	v, err := s.module.Invoke(abs, value.Int(-7))
	c.Assert(err, IsNil)
	c.Assert(v.Equal(value.Int(7)), IsTrue)

	_, err = s.module.Invoke(abs, value.String("-7"))
	c.Assert(err, HasKind, cffi.TypeMismatch)
	_, err = s.module.Invoke(abs)
	c.Assert(err, HasKind, cffi.ArityMismatch)

	// Type names work too, including the fixed-width ones.
	labs := s.call(c, "lib.import_func_s",
		lib, value.String("labs"), value.String("sint64"), value.String("sint64"))
	defer s.call(c, "callable.close", labs)

	v, err = s.module.Invoke(labs, value.Int(-1<<40))
	c.Assert(err, IsNil)
	c.Assert(v.Equal(value.Int(1<<40)), IsTrue)
}

func (s *LibcSuite) TestInferred(c *C) {
	lib := s.call(c, "import_lib", value.String("libc.so.6"))
	defer s.call(c, "lib.close", lib)

	srand := s.call(c, "lib.import_func", lib, value.String("srand"))
	defer s.call(c, "callable.close", srand)

	v, err := s.module.Invoke(srand, value.Int(42))
	c.Assert(err, IsNil)
	c.Assert(v.IsNull(), IsTrue)
}

func (s *LibcSuite) TestErrors(c *C) {
	_, err := s.module.Call("import_lib", value.String("/nonexistent/libnope.so"))
	c.Assert(err, HasKind, cffi.LibraryLoadFailed)

	lib := s.call(c, "import_lib", value.String("libc.so.6"))
	defer s.call(c, "lib.close", lib)

	_, err = s.module.Call("lib.import_func", lib, value.String("cffi_no_such_symbol"))
	c.Assert(err, HasKind, cffi.SymbolNotFound)

	_, err = s.module.Call("lib.import_func_s",
		lib, value.String("abs"), s.typ(c, "sint"), s.typ(c, "void"))
	c.Assert(err, HasKind, cffi.CallInterfacePrepFailed)
}

func (s *LibcSuite) TestCloseOrder(c *C) {
	lib := s.call(c, "import_lib", value.String("libc.so.6"))
	abs := s.call(c, "lib.import_func_s",
		lib, value.String("abs"), s.typ(c, "sint"), s.typ(c, "sint"))

	s.call(c, "lib.close", lib)
	c.Assert(s.stats.Value("cffi.open_libraries", nil), Equals, 1.0)

	v, err := s.module.Invoke(abs, value.Int(-1))
	c.Assert(err, IsNil)
	c.Assert(v.Equal(value.Int(1)), IsTrue)

	s.call(c, "callable.close", abs)
	c.Assert(s.stats.Value("cffi.open_libraries", nil), Equals, 0.0)

	_, err = s.module.Invoke(abs, value.Int(-1))
	c.Assert(err, HasKind, cffi.DispatcherClosed)
}

func (s *LibcSuite) TestBindManifest(c *C) {
	manifest, err := LoadManifest(strings.NewReader(libcManifest))
	c.Assert(err, IsNil)

	bound, err := s.module.BindManifest(manifest)
	c.Assert(err, IsNil)
	c.Assert(bound.Names(), DeepEquals, []string{"abs", "srand", "strlen"})
	c.Assert(s.stats.Value("cffi.open_libraries", nil), Equals, 1.0)

	v, err := s.module.Invoke(bound.Functions["strlen"], value.String("manifest"))
	c.Assert(err, IsNil)
	c.Assert(v.Equal(value.Int(8)), IsTrue)

	v, err = s.module.Invoke(bound.Functions["srand"], value.Int(3))
	c.Assert(err, IsNil)
	c.Assert(v.IsNull(), IsTrue)

	bound.Close()
	c.Assert(s.stats.Value("cffi.open_libraries", nil), Equals, 0.0)
}

func (s *LibcSuite) TestBindManifestFailureUnbindsEverything(c *C) {
	manifest := &Manifest{
		Library: "libc.so.6",
		Functions: []FunctionManifest{
			{Name: "abs", Returns: "sint", Args: []string{"sint"}},
			{Name: "cffi_no_such_symbol", Inferred: true},
		},
	}
	_, err := s.module.BindManifest(manifest)
	c.Assert(err, HasKind, cffi.SymbolNotFound)
	c.Assert(s.stats.Value("cffi.open_libraries", nil), Equals, 0.0)
}
