package cffi

import (
	"unsafe"

	"github.com/covscript/stdutils/dlog"
	"github.com/covscript/stdutils/errors"
	"github.com/covscript/stdutils/stats"
	"github.com/covscript/stdutils/sync2"
)

// Library is one mapping of a shared library.  The mapping is shared by the
// Library itself and every dispatcher bound through it, and is unmapped
// exactly once, when the last of them is closed.
//
// Opening the same path twice yields independent Library values; the
// platform loader keeps the underlying mapping alive until both are closed.
type Library struct {
	path    string
	handle  unsafe.Pointer
	options Options

	ref    *sync2.RefCount
	closed sync2.AtomicInt32

	openLibraries stats.GaugeStat
}

func Open(path string) (*Library, error) {
	return OpenWithOptions(path, Options{})
}

// Same as Open, but the library and its dispatchers use options.
func OpenWithOptions(path string, options Options) (*Library, error) {
	handle, err := nativeOpen(path)
	if err != nil {
		return nil, err
	}

	lib := &Library{
		path:    path,
		handle:  handle,
		options: options,
		openLibraries: stats.OrNoOp(options.Stats).NewGauge(
			openLibrariesMetric,
			nil),
	}
	lib.ref = sync2.NewRefCount(lib.unload)
	lib.openLibraries.Inc()

	dlog.Debugf("opened %s", path)
	return lib, nil
}

func (l *Library) unload() {
	if err := nativeClose(l.handle); err != nil {
		dlog.Errorf("closing %s: %s", l.path, errors.GetMessage(err))
	}
	l.handle = nil
	l.openLibraries.Dec()
	dlog.Debugf("unloaded %s", l.path)
}

func (l *Library) Path() string {
	return l.path
}

func (l *Library) String() string {
	return "library(" + l.path + ")"
}

// Returns true once Close has been called.  The mapping itself may still be
// alive if dispatchers hold references to it.
func (l *Library) IsClosed() bool {
	return l.closed.Get() != 0
}

// Returns true while the mapping is loaded.
func (l *Library) IsLoaded() bool {
	return !l.ref.IsReleased()
}

// Resolves symbol to its address.  Returns nil when the symbol is missing or
// the library has been closed; a nil address is not itself an error.
func (l *Library) AddressOf(symbol string) unsafe.Pointer {
	if l.IsClosed() || !l.ref.Retain() {
		return nil
	}
	defer l.ref.Release()
	return nativeSymbol(l.handle, symbol)
}

// Pins the mapping and resolves symbol.  On success the caller owns one
// library reference.
func (l *Library) resolve(symbol string) (unsafe.Pointer, error) {
	if l.IsClosed() || !l.ref.Retain() {
		return nil, errors.NewKindf(
			LibraryClosed,
			"cannot bind %s: %s has been closed",
			symbol,
			l.path)
	}

	fn := nativeSymbol(l.handle, symbol)
	if fn == nil {
		l.ref.Release()
		return nil, errors.NewKindf(
			SymbolNotFound,
			"symbol %s not found in %s",
			symbol,
			l.path)
	}
	return fn, nil
}

// Binds symbol for inferred calls.  The dispatcher keeps the library mapped
// until it is closed.
func (l *Library) BindInferred(symbol string) (*InferredDispatcher, error) {
	fn, err := l.resolve(symbol)
	if err != nil {
		return nil, err
	}

	d, err := newInferredDispatcher(fn, symbol, l.options, l.releaseRef)
	if err != nil {
		l.ref.Release()
		return nil, err
	}
	return d, nil
}

// Binds symbol with a declared signature.  Fails with
// CallInterfacePrepFailed if libffi rejects the signature.
func (l *Library) BindTyped(
	symbol string,
	ret NativeType,
	args ...NativeType) (*TypedDispatcher, error) {

	fn, err := l.resolve(symbol)
	if err != nil {
		return nil, err
	}

	d, err := newTypedDispatcher(fn, symbol, l.options, l.releaseRef, ret, args)
	if err != nil {
		l.ref.Release()
		return nil, err
	}
	return d, nil
}

func (l *Library) releaseRef() {
	l.ref.Release()
}

// Drops the opener's reference.  Safe to call more than once.
func (l *Library) Close() {
	if l.closed.CompareAndSwap(0, 1) {
		l.ref.Release()
	}
}
