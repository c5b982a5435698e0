package cffi

import (
	"github.com/covscript/stdutils/errors"
	"github.com/covscript/stdutils/value"
)

// Returns the address held by a pointer value as an integer.  Null converts
// to zero.
func MakeInteger(v value.Value) (value.Value, error) {
	if v.IsNull() {
		return value.Int(0), nil
	}
	p, ok := v.AsPointer()
	if !ok {
		return value.Null(), errors.NewKindf(
			UnsupportedValueKind,
			"make_integer expects a pointer, got %s",
			v.Kind())
	}
	return value.Int(int64(uintptr(p))), nil
}

// Copies the NUL-terminated C string at a pointer value into a host string.
// Null and nil pointers yield the null value.
func MakeString(v value.Value) (value.Value, error) {
	if v.IsNull() {
		return value.Null(), nil
	}
	p, ok := v.AsPointer()
	if !ok {
		return value.Null(), errors.NewKindf(
			UnsupportedValueKind,
			"make_string expects a pointer, got %s",
			v.Kind())
	}
	if p == nil {
		return value.Null(), nil
	}
	if !nativeAvailable {
		return value.Null(), unavailable("make_string")
	}
	return value.String(nativeGoString(p)), nil
}

func IsNullptr(v value.Value) bool {
	if v.IsNull() {
		return true
	}
	p, ok := v.AsPointer()
	return ok && p == nil
}
