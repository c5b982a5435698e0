// Package value implements the dynamically typed values that scripts hand to
// native code.  A Value is a small tagged union; the zero Value is Null.
package value

import (
	"fmt"
	"strconv"
	"unsafe"
)

type Kind int

const (
	// The null pointer / unit value.
	KindNull Kind = iota
	// A number, either integral or fractional (see IsInteger).
	KindNumber
	KindString
	// An opaque native address.
	KindPointer
	KindBool
	// Any host object (libraries, callables, type tags ...).
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindPointer:
		return "pointer"
	case KindBool:
		return "bool"
	case KindOpaque:
		return "opaque"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

type Value struct {
	kind     Kind
	integral bool
	i        int64
	f        float64
	s        string
	p        unsafe.Pointer
	b        bool
	o        interface{}
}

// Returns the null value.
func Null() Value {
	return Value{}
}

// Returns an integral number.
func Int(i int64) Value {
	return Value{kind: KindNumber, integral: true, i: i}
}

// Returns a fractional number.  Integral-ness is decided by the constructor,
// not the value: Float(2) is fractional.
func Float(f float64) Value {
	return Value{kind: KindNumber, f: f}
}

func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// Wraps a native address.  A nil address is still a pointer value, distinct
// from Null().
func Pointer(p unsafe.Pointer) Value {
	return Value{kind: KindPointer, p: p}
}

func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

func Opaque(o interface{}) Value {
	return Value{kind: KindOpaque, o: o}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == KindNull
}

func (v Value) IsNumber() bool {
	return v.kind == KindNumber
}

// True for numbers created with Int.
func (v Value) IsInteger() bool {
	return v.kind == KindNumber && v.integral
}

// True for numbers created with Float.
func (v Value) IsFractional() bool {
	return v.kind == KindNumber && !v.integral
}

// Returns the number as an integer, truncating fractional numbers.
func (v Value) AsInteger() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	if v.integral {
		return v.i, true
	}
	return int64(v.f), true
}

// Returns the number as a float.
func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	if v.integral {
		return float64(v.i), true
	}
	return v.f, true
}

func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

func (v Value) AsPointer() (unsafe.Pointer, bool) {
	if v.kind != KindPointer {
		return nil, false
	}
	return v.p, true
}

func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) AsOpaque() (interface{}, bool) {
	if v.kind != KindOpaque {
		return nil, false
	}
	return v.o, true
}

// Structural equality.  Numbers compare by integral-ness and value; opaque
// values compare with ==, so they must hold comparable types.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindNumber:
		if v.integral != other.integral {
			return false
		}
		if v.integral {
			return v.i == other.i
		}
		return v.f == other.f
	case KindString:
		return v.s == other.s
	case KindPointer:
		return v.p == other.p
	case KindBool:
		return v.b == other.b
	case KindOpaque:
		return v.o == other.o
	}
	return false
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindNumber:
		if v.integral {
			return strconv.FormatInt(v.i, 10)
		}
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindPointer:
		return fmt.Sprintf("pointer(%p)", v.p)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindOpaque:
		if s, ok := v.o.(fmt.Stringer); ok {
			return s.String()
		}
		return fmt.Sprintf("opaque(%T)", v.o)
	}
	return v.kind.String()
}
