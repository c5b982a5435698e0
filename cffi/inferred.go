package cffi

import (
	"unsafe"

	"github.com/covscript/stdutils/dlog"
	"github.com/covscript/stdutils/errors"
	"github.com/covscript/stdutils/sync2"
	"github.com/covscript/stdutils/value"
)

// InferredDispatcher calls a native function without a declared signature.
// Argument types come from the values passed to each call; the return type
// is always void, so Invoke returns the null value.
type InferredDispatcher struct {
	*callTarget

	strict bool
}

// Overridden in tests.
var prepareInferred = prepareCallInterface

// Wraps a raw function pointer.  The caller keeps whatever the pointer
// belongs to alive; use Library.BindInferred to have the library pinned.
func NewInferredDispatcher(
	fn unsafe.Pointer,
	options Options) (*InferredDispatcher, error) {

	return newInferredDispatcher(fn, "", options, nil)
}

func newInferredDispatcher(
	fn unsafe.Pointer,
	symbol string,
	options Options,
	onRelease func()) (*InferredDispatcher, error) {

	target, err := newCallTarget(
		fn,
		symbol,
		newBridgeStats(options, inferredMode))
	if err != nil {
		return nil, err
	}
	target.ref = sync2.NewRefCount(onRelease)

	return &InferredDispatcher{
		callTarget: target,
		strict:     options.StrictInferred,
	}, nil
}

// Invoke calls the function with args.  A fresh call interface is prepared
// for every call.  If libffi rejects it the call is skipped and Invoke
// returns the null value, unless the dispatcher is strict.
func (d *InferredDispatcher) Invoke(args ...value.Value) (value.Value, error) {
	if err := d.acquire(); err != nil {
		return value.Null(), err
	}
	defer d.ref.Release()

	types, err := inferArgTypes(args)
	if err != nil {
		return value.Null(), d.stats.failed(err)
	}

	frame, err := buildFrame(args, types)
	if err != nil {
		return value.Null(), d.stats.failed(err)
	}
	defer frame.release()

	ci, err := prepareInferred(Void, types)
	if err != nil {
		d.stats.prepFailures.Inc()
		if d.strict {
			return value.Null(), d.stats.failed(errors.WrapKindf(
				err,
				CallInterfacePrepFailed,
				"cannot call %s",
				d))
		}
		dlog.Warningf("skipping call to %s: %s", d, errors.GetMessage(err))
		return value.Null(), nil
	}
	defer ci.free()

	d.stats.timed(func() {
		ci.call(d.fn, nil, frame.argv)
	})
	return value.Null(), nil
}
