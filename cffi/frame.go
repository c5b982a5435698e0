package cffi

import (
	"unsafe"

	"github.com/covscript/stdutils/errors"
	"github.com/covscript/stdutils/value"
)

// Picks native types from the arguments' runtime kinds.
func inferArgTypes(args []value.Value) ([]NativeType, error) {
	types := make([]NativeType, len(args))
	for i, arg := range args {
		switch arg.Kind() {
		case value.KindNumber:
			if arg.IsInteger() {
				types[i] = SInt64
			} else {
				types[i] = extendedFloat
			}
		case value.KindString:
			types[i] = String
		case value.KindPointer, value.KindNull:
			types[i] = Pointer
		default:
			return nil, errors.NewKindf(
				UnsupportedValueKind,
				"argument %d: %s values cannot be passed to native code",
				i,
				arg.Kind())
		}
	}
	return types, nil
}

func checkCompatible(v value.Value, t NativeType) error {
	ok := false
	switch v.Kind() {
	case value.KindNumber:
		if v.IsInteger() {
			ok = IsIntegerLike(t)
		} else {
			ok = IsFloatLike(t)
		}
	case value.KindString:
		ok = t == String
	case value.KindPointer:
		ok = t == Pointer
	case value.KindNull:
		ok = t == Pointer || IsIntegerLike(t)
	default:
		return errors.NewKindf(
			UnsupportedValueKind,
			"%s values cannot be passed to native code",
			v.Kind())
	}

	if !ok {
		return errors.NewKindf(
			TypeMismatch,
			"cannot pass %s value as %s",
			describe(v),
			t)
	}
	return nil
}

func describe(v value.Value) string {
	if v.IsNumber() {
		if v.IsInteger() {
			return "integral number"
		}
		return "fractional number"
	}
	return v.Kind().String()
}

// Validates every argument before anything is allocated.
func checkArgTypes(args []value.Value, types []NativeType) error {
	if len(args) != len(types) {
		return errors.NewKindf(
			ArityMismatch,
			"expected %d arguments, got %d",
			len(types),
			len(args))
	}
	for i, arg := range args {
		if err := checkCompatible(arg, types[i]); err != nil {
			return errors.WrapKindf(
				err,
				errors.KindOf(err),
				"argument %d",
				i)
		}
	}
	return nil
}

// Rejects signatures libffi must never see.
func validateSignature(ret NativeType, args []NativeType) error {
	if !ret.Valid() {
		return errors.NewKindf(
			CallInterfacePrepFailed,
			"invalid return type %s",
			ret)
	}
	for i, t := range args {
		if !t.Valid() || t == Void {
			return errors.NewKindf(
				CallInterfacePrepFailed,
				"argument %d has invalid type %s",
				i,
				t)
		}
	}
	return nil
}

// A callFrame holds the marshaled arguments of one call and the C argv
// vector pointing at their slots.
type callFrame struct {
	types   []NativeType
	holders []*marshaledValue
	argv    unsafe.Pointer // void*[len(types)]; nil when there are no arguments
}

func buildFrame(args []value.Value, types []NativeType) (*callFrame, error) {
	if err := checkArgTypes(args, types); err != nil {
		return nil, err
	}

	frame := &callFrame{
		types:   types,
		holders: make([]*marshaledValue, 0, len(args)),
	}
	if len(args) == 0 {
		return frame, nil
	}

	argv, err := nativeAlloc(uintptr(len(args)) * unsafe.Sizeof(uintptr(0)))
	if err != nil {
		return nil, err
	}
	frame.argv = argv
	slots := unsafe.Slice((*unsafe.Pointer)(argv), len(args))

	for i, arg := range args {
		h, err := newArgHolder(arg, types[i])
		if err != nil {
			frame.release()
			return nil, err
		}
		frame.holders = append(frame.holders, h)
		slots[i] = h.ptr()
	}
	return frame, nil
}

func (f *callFrame) release() {
	for _, h := range f.holders {
		h.release()
	}
	f.holders = nil
	if f.argv != nil {
		nativeFree(f.argv)
		f.argv = nil
	}
}
