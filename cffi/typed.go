package cffi

import (
	"bytes"
	"unsafe"

	"github.com/covscript/stdutils/errors"
	"github.com/covscript/stdutils/sync2"
	"github.com/covscript/stdutils/value"
)

// CallSignature is a declared native function type.
type CallSignature struct {
	Return NativeType
	Args   []NativeType
}

// Formats the signature C-style, e.g. "sint(sint, string)".
func (s CallSignature) String() string {
	buf := &bytes.Buffer{}
	buf.WriteString(s.Return.String())
	buf.WriteByte('(')
	for i, t := range s.Args {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(t.String())
	}
	buf.WriteByte(')')
	return buf.String()
}

// TypedDispatcher calls a native function through a declared signature.
// The call interface is prepared once, at construction, and is read-only
// afterwards, so Invoke may be called concurrently.
type TypedDispatcher struct {
	*callTarget

	sig CallSignature
	ci  *callInterface
}

// Wraps a raw function pointer.  The caller keeps whatever the pointer
// belongs to alive; use Library.BindTyped to have the library pinned.
func NewTypedDispatcher(
	fn unsafe.Pointer,
	options Options,
	ret NativeType,
	args ...NativeType) (*TypedDispatcher, error) {

	return newTypedDispatcher(fn, "", options, nil, ret, args)
}

func newTypedDispatcher(
	fn unsafe.Pointer,
	symbol string,
	options Options,
	onRelease func(),
	ret NativeType,
	args []NativeType) (*TypedDispatcher, error) {

	bs := newBridgeStats(options, typedMode)
	target, err := newCallTarget(fn, symbol, bs)
	if err != nil {
		return nil, err
	}

	sig := CallSignature{
		Return: ret,
		Args:   append([]NativeType(nil), args...),
	}
	for _, t := range sig.Args {
		if t == extendedFloat {
			return nil, errors.NewKindf(
				CallInterfacePrepFailed,
				"%s: %s is not a selectable argument type",
				sig,
				t)
		}
	}
	if ret == extendedFloat {
		return nil, errors.NewKindf(
			CallInterfacePrepFailed,
			"%s: %s is not a selectable return type",
			sig,
			ret)
	}

	ci, err := prepareCallInterface(sig.Return, sig.Args)
	if err != nil {
		return nil, errors.WrapKindf(
			err,
			CallInterfacePrepFailed,
			"cannot bind %s as %s",
			symbolName(symbol),
			sig)
	}

	d := &TypedDispatcher{
		callTarget: target,
		sig:        sig,
		ci:         ci,
	}
	target.ref = sync2.NewRefCount(func() {
		d.ci.free()
		if onRelease != nil {
			onRelease()
		}
	})
	return d, nil
}

// Returns a copy of the declared signature.
func (d *TypedDispatcher) Signature() CallSignature {
	return CallSignature{
		Return: d.sig.Return,
		Args:   append([]NativeType(nil), d.sig.Args...),
	}
}

// Invoke marshals args per the declared signature, calls the function and
// converts its return value.  Void functions return the null value.  No
// native call is made when validation fails.
func (d *TypedDispatcher) Invoke(args ...value.Value) (value.Value, error) {
	if err := d.acquire(); err != nil {
		return value.Null(), err
	}
	defer d.ref.Release()

	if len(args) != len(d.sig.Args) {
		return value.Null(), d.stats.failed(errors.NewKindf(
			ArityMismatch,
			"%s expects %d arguments, got %d",
			d,
			len(d.sig.Args),
			len(args)))
	}

	frame, err := buildFrame(args, d.sig.Args)
	if err != nil {
		return value.Null(), d.stats.failed(err)
	}
	defer frame.release()

	var ret *marshaledValue
	var rvalue unsafe.Pointer
	if d.sig.Return != Void {
		ret, err = newReturnHolder(d.sig.Return)
		if err != nil {
			return value.Null(), d.stats.failed(err)
		}
		defer ret.release()
		rvalue = ret.ptr()
	}

	d.stats.timed(func() {
		d.ci.call(d.fn, rvalue, frame.argv)
	})

	if ret == nil {
		return value.Null(), nil
	}
	return ret.toDynamic(), nil
}
