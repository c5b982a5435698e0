package binding

import (
	"strings"

	. "gopkg.in/check.v1"

	"github.com/covscript/stdutils/cffi"
	. "github.com/covscript/stdutils/gocheck2"
)

type ManifestSuite struct {
}

var _ = Suite(&ManifestSuite{})

const libcManifest = `
library: libc.so.6
functions:
  - name: abs
    returns: sint
    args: [sint]
  - name: strlen
    returns: ulong
    args: [string]
  - name: srand
    inferred: true
`

func (s *ManifestSuite) TestLoad(c *C) {
	m, err := LoadManifest(strings.NewReader(libcManifest))
	c.Assert(err, IsNil)
	c.Assert(m.Library, Equals, "libc.so.6")
	c.Assert(m.Functions, HasLen, 3)
	c.Assert(m.Functions[2].Inferred, IsTrue)

	sig, err := m.Functions[1].Signature()
	c.Assert(err, IsNil)
	c.Assert(sig.String(), Equals, "ulong(string)")

	sig, err = FunctionManifest{Name: "f"}.Signature()
	c.Assert(err, IsNil)
	c.Assert(sig.Return, Equals, cffi.Void)
	c.Assert(sig.Args, HasLen, 0)
}

func (s *ManifestSuite) TestInvalid(c *C) {
	for _, doc := range []string{
		"",
		"library: [",
		"functions: []",
		"library: x\nbogus: 1",
		"library: x\nfunctions:\n  - returns: sint",
		"library: x\nfunctions:\n  - name: f\n  - name: f",
		"library: x\nfunctions:\n  - name: f\n    returns: int",
		"library: x\nfunctions:\n  - name: f\n    args: [sint, longdouble]",
		"library: x\nfunctions:\n  - name: f\n    inferred: true\n    args: [sint]",
	} {
		_, err := LoadManifest(strings.NewReader(doc))
		c.Assert(err, HasKind, BadManifest, Commentf("manifest %q", doc))
	}
}
