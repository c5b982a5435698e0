//go:build !cgo || !(linux || darwin)
// +build !cgo !linux,!darwin

package cffi

import (
	"unsafe"
)

// This build has no libffi.  Every entry point into native code fails with
// FFIUnavailable; the pure validation paths still work.

const nativeAvailable = false

var slotSize = uintptr(16)

func descriptorAddr(t NativeType) unsafe.Pointer {
	return nil
}

func nativeAlloc(size uintptr) (unsafe.Pointer, error) {
	return nil, unavailable("alloc")
}

func nativeFree(p unsafe.Pointer) {}

func nativeCString(s string) unsafe.Pointer {
	return nil
}

func nativeGoString(p unsafe.Pointer) string {
	return ""
}

func storeInteger(slot unsafe.Pointer, t NativeType, i int64) {}

func loadInteger(slot unsafe.Pointer, t NativeType, widened bool) int64 {
	return 0
}

func storeFloat(slot unsafe.Pointer, t NativeType, f float64) {}

func loadFloat(slot unsafe.Pointer, t NativeType) float64 {
	return 0
}

func storePointer(slot unsafe.Pointer, p unsafe.Pointer) {}

func loadPointer(slot unsafe.Pointer) unsafe.Pointer {
	return nil
}

type callInterface struct{}

func prepareCallInterface(
	ret NativeType,
	args []NativeType) (*callInterface, error) {

	if err := validateSignature(ret, args); err != nil {
		return nil, err
	}
	return nil, unavailable("ffi_prep_cif")
}

func (ci *callInterface) call(fn unsafe.Pointer, rvalue unsafe.Pointer, argv unsafe.Pointer) {}

func (ci *callInterface) free() {}

func nativeOpen(path string) (unsafe.Pointer, error) {
	return nil, unavailable("dlopen " + path)
}

func nativeSymbol(h unsafe.Pointer, name string) unsafe.Pointer {
	return nil
}

func nativeClose(h unsafe.Pointer) error {
	return nil
}
