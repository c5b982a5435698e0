package cffi

import (
	"fmt"
	"unsafe"

	"github.com/covscript/stdutils/errors"
	"github.com/covscript/stdutils/sync2"
)

// State shared by both dispatcher flavors: the native entry point and the
// reference keeping its library mapped.
type callTarget struct {
	fn     unsafe.Pointer
	symbol string
	stats  *bridgeStats
	ref    *sync2.RefCount
	closed sync2.AtomicInt32
}

func newCallTarget(
	fn unsafe.Pointer,
	symbol string,
	stats *bridgeStats) (*callTarget, error) {

	if !nativeAvailable {
		return nil, unavailable("bind " + symbol)
	}
	if fn == nil {
		return nil, errors.NewKindf(
			SymbolNotFound,
			"cannot bind %s: nil function pointer",
			symbolName(symbol))
	}
	return &callTarget{fn: fn, symbol: symbol, stats: stats}, nil
}

func symbolName(symbol string) string {
	if symbol == "" {
		return "<anonymous>"
	}
	return symbol
}

// Pins the target for the duration of one call.  Callers must release the
// reference when acquire succeeds.
func (t *callTarget) acquire() error {
	if t.ref.Retain() {
		return nil
	}
	return t.stats.failed(errors.NewKindf(
		DispatcherClosed,
		"%s has been closed",
		symbolName(t.symbol)))
}

// Returns the symbol name the dispatcher was bound from ("" for raw function
// pointers).
func (t *callTarget) Symbol() string {
	return t.symbol
}

func (t *callTarget) Address() unsafe.Pointer {
	return t.fn
}

// Drops the dispatcher's reference.  In-flight calls finish first; later
// calls fail with DispatcherClosed.  Safe to call more than once.
func (t *callTarget) Close() {
	if t.closed.CompareAndSwap(0, 1) {
		t.ref.Release()
	}
}

func (t *callTarget) IsClosed() bool {
	return t.closed.Get() != 0
}

func (t *callTarget) String() string {
	return fmt.Sprintf("%s@%p", symbolName(t.symbol), t.fn)
}
