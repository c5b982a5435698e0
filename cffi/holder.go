package cffi

import (
	"unsafe"

	"github.com/covscript/stdutils/value"
)

// A marshaledValue owns one C heap slot large enough for any supported
// scalar, plus (for String arguments) the C heap copy of the Go string the
// slot points at.  Both stay valid until release.
type marshaledValue struct {
	typ      NativeType
	slot     unsafe.Pointer
	buf      unsafe.Pointer
	isReturn bool
}

// Writes v, converted to t, into a fresh slot.
func newArgHolder(v value.Value, t NativeType) (*marshaledValue, error) {
	if err := checkCompatible(v, t); err != nil {
		return nil, err
	}

	slot, err := nativeAlloc(slotSize)
	if err != nil {
		return nil, err
	}
	h := &marshaledValue{typ: t, slot: slot}

	switch {
	case t == String:
		s, _ := v.AsString()
		h.buf = nativeCString(s)
		storePointer(slot, h.buf)
	case t == Pointer:
		// Null leaves the zeroed slot as a NULL pointer.
		if p, ok := v.AsPointer(); ok {
			storePointer(slot, p)
		}
	case IsIntegerLike(t):
		if i, ok := v.AsInteger(); ok {
			storeInteger(slot, t, i)
		}
	case IsFloatLike(t):
		f, _ := v.AsFloat()
		storeFloat(slot, t, f)
	}
	return h, nil
}

// Returns a zeroed slot for a call's return value.
func newReturnHolder(t NativeType) (*marshaledValue, error) {
	slot, err := nativeAlloc(slotSize)
	if err != nil {
		return nil, err
	}
	return &marshaledValue{typ: t, slot: slot, isReturn: true}, nil
}

func (h *marshaledValue) ptr() unsafe.Pointer {
	return h.slot
}

// Converts the slot's contents back into a dynamic value.  String slots are
// copied out, so the result does not alias native memory.
func (h *marshaledValue) toDynamic() value.Value {
	switch {
	case h.typ == String:
		p := loadPointer(h.slot)
		if p == nil {
			return value.Null()
		}
		return value.String(nativeGoString(p))
	case h.typ == Pointer:
		return value.Pointer(loadPointer(h.slot))
	case IsIntegerLike(h.typ):
		return value.Int(loadInteger(h.slot, h.typ, h.isReturn))
	case IsFloatLike(h.typ):
		return value.Float(loadFloat(h.slot, h.typ))
	}
	return value.Null()
}

func (h *marshaledValue) release() {
	if h.buf != nil {
		nativeFree(h.buf)
		h.buf = nil
	}
	if h.slot != nil {
		nativeFree(h.slot)
		h.slot = nil
	}
}
