//go:build cgo && (linux || darwin)
// +build cgo
// +build linux darwin

package cffi

/*
#cgo LDFLAGS: -ldl
#cgo pkg-config: libffi
#include <ffi.h>
#include <dlfcn.h>
#include <stdint.h>
#include <stdlib.h>

enum {
	CFFI_VOID,
	CFFI_POINTER,
	CFFI_DOUBLE,
	CFFI_FLOAT,
	CFFI_SCHAR,
	CFFI_SSHORT,
	CFFI_SINT,
	CFFI_SLONG,
	CFFI_UCHAR,
	CFFI_USHORT,
	CFFI_UINT,
	CFFI_ULONG,
	CFFI_SINT8,
	CFFI_SINT16,
	CFFI_SINT32,
	CFFI_SINT64,
	CFFI_UINT8,
	CFFI_UINT16,
	CFFI_UINT32,
	CFFI_UINT64,
	CFFI_LONGDOUBLE
};

// Several ffi_type_* names are macros aliasing the fixed-width descriptors,
// so the lookup has to happen on the C side.
static ffi_type* cffi_descriptor(int code) {
	switch (code) {
	case CFFI_VOID:       return &ffi_type_void;
	case CFFI_POINTER:    return &ffi_type_pointer;
	case CFFI_DOUBLE:     return &ffi_type_double;
	case CFFI_FLOAT:      return &ffi_type_float;
	case CFFI_SCHAR:      return &ffi_type_schar;
	case CFFI_SSHORT:     return &ffi_type_sshort;
	case CFFI_SINT:       return &ffi_type_sint;
	case CFFI_SLONG:      return &ffi_type_slong;
	case CFFI_UCHAR:      return &ffi_type_uchar;
	case CFFI_USHORT:     return &ffi_type_ushort;
	case CFFI_UINT:       return &ffi_type_uint;
	case CFFI_ULONG:      return &ffi_type_ulong;
	case CFFI_SINT8:      return &ffi_type_sint8;
	case CFFI_SINT16:     return &ffi_type_sint16;
	case CFFI_SINT32:     return &ffi_type_sint32;
	case CFFI_SINT64:     return &ffi_type_sint64;
	case CFFI_UINT8:      return &ffi_type_uint8;
	case CFFI_UINT16:     return &ffi_type_uint16;
	case CFFI_UINT32:     return &ffi_type_uint32;
	case CFFI_UINT64:     return &ffi_type_uint64;
	case CFFI_LONGDOUBLE: return &ffi_type_longdouble;
	}
	return NULL;
}

static size_t cffi_slot_size(void) {
	size_t n = sizeof(long double);
	if (n < sizeof(ffi_arg)) n = sizeof(ffi_arg);
	if (n < sizeof(uint64_t)) n = sizeof(uint64_t);
	if (n < sizeof(void*)) n = sizeof(void*);
	return n;
}

static void cffi_store_longdouble(void* dst, double v) {
	*(long double*)dst = (long double)v;
}

static double cffi_load_longdouble(const void* src) {
	return (double)*(const long double*)src;
}

// libffi widens integral return values narrower than a register to a full
// ffi_arg / ffi_sarg.
static int64_t cffi_load_sarg(const void* src) {
	return (int64_t)*(const ffi_sarg*)src;
}

static uint64_t cffi_load_uarg(const void* src) {
	return (uint64_t)*(const ffi_arg*)src;
}

static ffi_cif* cffi_alloc_cif(void) {
	return (ffi_cif*)malloc(sizeof(ffi_cif));
}

static ffi_status cffi_prep_cif(ffi_cif* cif, unsigned int nargs,
    ffi_type* rtype, ffi_type** atypes) {
	return ffi_prep_cif(cif, FFI_DEFAULT_ABI, nargs, rtype, atypes);
}

static void cffi_call(ffi_cif* cif, void* fn, void* rvalue, void** avalue) {
	ffi_call(cif, (void (*)(void))fn, rvalue, avalue);
}

static void* cffi_dlopen(const char* path) {
	return dlopen(path, RTLD_LAZY | RTLD_LOCAL);
}

static char* cffi_dlerror(void) {
	return dlerror();
}

// Returns NULL when the symbol is missing.
static void* cffi_dlsym(void* h, const char* name) {
	dlerror();
	void* p = dlsym(h, name);
	if (dlerror() != NULL) {
		return NULL;
	}
	return p;
}

static int cffi_dlclose(void* h) {
	return dlclose(h);
}
*/
import "C"

import (
	"unsafe"

	"github.com/covscript/stdutils/errors"
)

const nativeAvailable = true

var (
	slotSize   = uintptr(C.cffi_slot_size())
	ffiArgSize = unsafe.Sizeof(C.ffi_arg(0))
	ptrSize    = unsafe.Sizeof(uintptr(0))
)

var descriptorCodes = [numNativeTypes]C.int{
	Void:          C.int(C.CFFI_VOID),
	Pointer:       C.int(C.CFFI_POINTER),
	Double:        C.int(C.CFFI_DOUBLE),
	Float:         C.int(C.CFFI_FLOAT),
	SChar:         C.int(C.CFFI_SCHAR),
	SShort:        C.int(C.CFFI_SSHORT),
	SInt:          C.int(C.CFFI_SINT),
	SLong:         C.int(C.CFFI_SLONG),
	UChar:         C.int(C.CFFI_UCHAR),
	UShort:        C.int(C.CFFI_USHORT),
	UInt:          C.int(C.CFFI_UINT),
	ULong:         C.int(C.CFFI_ULONG),
	SInt8:         C.int(C.CFFI_SINT8),
	SInt16:        C.int(C.CFFI_SINT16),
	SInt32:        C.int(C.CFFI_SINT32),
	SInt64:        C.int(C.CFFI_SINT64),
	UInt8:         C.int(C.CFFI_UINT8),
	UInt16:        C.int(C.CFFI_UINT16),
	UInt32:        C.int(C.CFFI_UINT32),
	UInt64:        C.int(C.CFFI_UINT64),
	String:        C.int(C.CFFI_POINTER),
	extendedFloat: C.int(C.CFFI_LONGDOUBLE),
}

// Returns the libffi descriptor for t, or nil for invalid types.
func descriptorFor(t NativeType) *C.ffi_type {
	if !t.Valid() {
		return nil
	}
	return C.cffi_descriptor(descriptorCodes[t])
}

func descriptorAddr(t NativeType) unsafe.Pointer {
	return unsafe.Pointer(descriptorFor(t))
}

// Size in bytes of t's native representation (0 for void).
func nativeSize(t NativeType) uintptr {
	switch t {
	case Pointer, String:
		return ptrSize
	case Double:
		return unsafe.Sizeof(C.double(0))
	case Float:
		return unsafe.Sizeof(C.float(0))
	case SChar, UChar, SInt8, UInt8:
		return 1
	case SShort, UShort, SInt16, UInt16:
		return unsafe.Sizeof(C.short(0))
	case SInt, UInt, SInt32, UInt32:
		return unsafe.Sizeof(C.int(0))
	case SLong, ULong:
		return unsafe.Sizeof(C.long(0))
	case SInt64, UInt64:
		return 8
	case extendedFloat:
		return slotSize
	}
	return 0
}

//
// Memory
//

// Returns size zeroed bytes on the C heap.
func nativeAlloc(size uintptr) (unsafe.Pointer, error) {
	p := C.calloc(1, C.size_t(size))
	if p == nil {
		return nil, errors.NewKindf(NativeAllocFailed, "calloc(%d) failed", size)
	}
	return p, nil
}

func nativeFree(p unsafe.Pointer) {
	C.free(p)
}

// Copies s into a fresh NUL-terminated C heap buffer of len(s)+1 bytes.
func nativeCString(s string) unsafe.Pointer {
	return unsafe.Pointer(C.CString(s))
}

func nativeGoString(p unsafe.Pointer) string {
	return C.GoString((*C.char)(p))
}

//
// Slot access.  Writes use C conversion semantics for the target width.
//

func storeInteger(slot unsafe.Pointer, t NativeType, i int64) {
	switch t {
	case SChar:
		*(*C.schar)(slot) = C.schar(i)
	case SShort:
		*(*C.short)(slot) = C.short(i)
	case SInt:
		*(*C.int)(slot) = C.int(i)
	case SLong:
		*(*C.long)(slot) = C.long(i)
	case UChar:
		*(*C.uchar)(slot) = C.uchar(i)
	case UShort:
		*(*C.ushort)(slot) = C.ushort(i)
	case UInt:
		*(*C.uint)(slot) = C.uint(i)
	case ULong:
		*(*C.ulong)(slot) = C.ulong(i)
	case SInt8:
		*(*int8)(slot) = int8(i)
	case SInt16:
		*(*int16)(slot) = int16(i)
	case SInt32:
		*(*int32)(slot) = int32(i)
	case SInt64:
		*(*int64)(slot) = i
	case UInt8:
		*(*uint8)(slot) = uint8(i)
	case UInt16:
		*(*uint16)(slot) = uint16(i)
	case UInt32:
		*(*uint32)(slot) = uint32(i)
	case UInt64:
		*(*uint64)(slot) = uint64(i)
	}
}

// Reads an integer slot.  widened must be set for return slots: libffi
// stores narrow integral returns as a full ffi_arg.
func loadInteger(slot unsafe.Pointer, t NativeType, widened bool) int64 {
	if widened && nativeSize(t) < ffiArgSize {
		if isSigned(t) {
			return int64(C.cffi_load_sarg(slot))
		}
		return int64(uint64(C.cffi_load_uarg(slot)))
	}
	switch t {
	case SChar:
		return int64(*(*C.schar)(slot))
	case SShort:
		return int64(*(*C.short)(slot))
	case SInt:
		return int64(*(*C.int)(slot))
	case SLong:
		return int64(*(*C.long)(slot))
	case UChar:
		return int64(*(*C.uchar)(slot))
	case UShort:
		return int64(*(*C.ushort)(slot))
	case UInt:
		return int64(*(*C.uint)(slot))
	case ULong:
		return int64(*(*C.ulong)(slot))
	case SInt8:
		return int64(*(*int8)(slot))
	case SInt16:
		return int64(*(*int16)(slot))
	case SInt32:
		return int64(*(*int32)(slot))
	case SInt64:
		return *(*int64)(slot)
	case UInt8:
		return int64(*(*uint8)(slot))
	case UInt16:
		return int64(*(*uint16)(slot))
	case UInt32:
		return int64(*(*uint32)(slot))
	case UInt64:
		return int64(*(*uint64)(slot))
	}
	return 0
}

func storeFloat(slot unsafe.Pointer, t NativeType, f float64) {
	switch t {
	case Double:
		*(*C.double)(slot) = C.double(f)
	case Float:
		*(*C.float)(slot) = C.float(f)
	case extendedFloat:
		C.cffi_store_longdouble(slot, C.double(f))
	}
}

func loadFloat(slot unsafe.Pointer, t NativeType) float64 {
	switch t {
	case Double:
		return float64(*(*C.double)(slot))
	case Float:
		return float64(*(*C.float)(slot))
	case extendedFloat:
		return float64(C.cffi_load_longdouble(slot))
	}
	return 0
}

func storePointer(slot unsafe.Pointer, p unsafe.Pointer) {
	*(*unsafe.Pointer)(slot) = p
}

func loadPointer(slot unsafe.Pointer) unsafe.Pointer {
	return *(*unsafe.Pointer)(slot)
}

//
// libffi
//

// A prepared libffi call interface.  The cif and its argument type vector
// live on the C heap because libffi keeps referring to the vector.
type callInterface struct {
	cif   *C.ffi_cif
	types unsafe.Pointer // ffi_type*[nargs]; nil when nargs == 0
	nargs int
}

func prepareCallInterface(
	ret NativeType,
	args []NativeType) (*callInterface, error) {

	if err := validateSignature(ret, args); err != nil {
		return nil, err
	}

	ci := &callInterface{nargs: len(args)}
	if ci.nargs > 0 {
		ci.types = C.malloc(C.size_t(ci.nargs) * C.size_t(ptrSize))
		if ci.types == nil {
			return nil, errors.NewKindf(
				CallInterfacePrepFailed,
				"out of memory allocating %d argument types",
				ci.nargs)
		}
		vec := unsafe.Slice((**C.ffi_type)(ci.types), ci.nargs)
		for i, t := range args {
			vec[i] = descriptorFor(t)
		}
	}

	ci.cif = C.cffi_alloc_cif()
	if ci.cif == nil {
		ci.free()
		return nil, errors.NewKindf(
			CallInterfacePrepFailed,
			"out of memory allocating call interface")
	}

	status := C.cffi_prep_cif(
		ci.cif,
		C.uint(ci.nargs),
		descriptorFor(ret),
		(**C.ffi_type)(ci.types))
	if status != C.FFI_OK {
		ci.free()
		return nil, errors.NewKindf(
			CallInterfacePrepFailed,
			"ffi_prep_cif(%s <- %v) failed with status %d",
			ret,
			args,
			int(status))
	}
	return ci, nil
}

// Issues the native call.  argv is a C array of nargs slot addresses and
// rvalue is a return slot (nil for void returns).
func (ci *callInterface) call(fn unsafe.Pointer, rvalue unsafe.Pointer, argv unsafe.Pointer) {
	C.cffi_call(ci.cif, fn, rvalue, (*unsafe.Pointer)(argv))
}

func (ci *callInterface) free() {
	if ci.cif != nil {
		C.free(unsafe.Pointer(ci.cif))
		ci.cif = nil
	}
	if ci.types != nil {
		C.free(ci.types)
		ci.types = nil
	}
}

//
// Dynamic loader
//

func dlerr() string {
	if e := C.cffi_dlerror(); e != nil {
		return C.GoString(e)
	}
	return "unknown dlerror"
}

func nativeOpen(path string) (unsafe.Pointer, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	h := C.cffi_dlopen(cpath)
	if h == nil {
		return nil, errors.NewKindf(
			LibraryLoadFailed,
			"dlopen(%q) failed: %s",
			path,
			dlerr())
	}
	return h, nil
}

// Returns nil when the symbol is missing.
func nativeSymbol(h unsafe.Pointer, name string) unsafe.Pointer {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return C.cffi_dlsym(h, cname)
}

func nativeClose(h unsafe.Pointer) error {
	if C.cffi_dlclose(h) != 0 {
		return errors.Newf("dlclose failed: %s", dlerr())
	}
	return nil
}
