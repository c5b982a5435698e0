//go:build !cgo || !(linux || darwin)
// +build !cgo !linux,!darwin

package cffi

import (
	"unsafe"

	. "gopkg.in/check.v1"

	. "github.com/covscript/stdutils/gocheck2"
	"github.com/covscript/stdutils/value"
)

type UnavailableSuite struct {
}

var _ = Suite(&UnavailableSuite{})

func (s *UnavailableSuite) TestEverythingNativeFails(c *C) {
	_, err := Open("libc.so.6")
	c.Assert(err, HasKind, FFIUnavailable)

	x := 0
	fn := unsafe.Pointer(&x)
	_, err = NewTypedDispatcher(fn, Options{}, SInt, SInt)
	c.Assert(err, HasKind, FFIUnavailable)
	_, err = NewInferredDispatcher(fn, Options{})
	c.Assert(err, HasKind, FFIUnavailable)

	_, err = MakeString(value.Pointer(fn))
	c.Assert(err, HasKind, FFIUnavailable)

	// Validation still runs first.
	_, err = prepareCallInterface(SInt, []NativeType{Void})
	c.Assert(err, HasKind, CallInterfacePrepFailed)
}
