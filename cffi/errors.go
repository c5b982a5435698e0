package cffi

import (
	"github.com/covscript/stdutils/errors"
)

// Error kinds reported by the bridge.  Every one of them is detected before
// a native call is issued; a failed bind or call leaves no state behind.
const (
	// The platform loader rejected a library path.
	LibraryLoadFailed errors.Kind = "LibraryLoadFailed"

	// A symbol could not be resolved, or a nil function pointer was bound.
	SymbolNotFound errors.Kind = "SymbolNotFound"

	// libffi could not build a call interface for a declared signature.
	CallInterfacePrepFailed errors.Kind = "CallInterfacePrepFailed"

	// The number of arguments differs from the declared signature.
	ArityMismatch errors.Kind = "ArityMismatch"

	// A dynamic value is incompatible with its declared native type.
	TypeMismatch errors.Kind = "TypeMismatch"

	// A dynamic value has no native representation at all.
	UnsupportedValueKind errors.Kind = "UnsupportedValueKind"

	// The library was closed before the operation.
	LibraryClosed errors.Kind = "LibraryClosed"

	// The dispatcher was closed before the invocation.
	DispatcherClosed errors.Kind = "DispatcherClosed"

	// The native allocator failed.
	NativeAllocFailed errors.Kind = "NativeAllocFailed"

	// This binary was built without cgo / libffi support.
	FFIUnavailable errors.Kind = "FFIUnavailable"
)

func unavailable(op string) error {
	return errors.NewKindf(
		FFIUnavailable,
		"%s: binary built without cgo/libffi support",
		op)
}
