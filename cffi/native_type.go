package cffi

import (
	"sort"
	"strconv"
)

// NativeType names one of the closed set of native ABI types the bridge can
// marshal.  String is ABI-identical to Pointer, but String arguments are
// copied into a bridge-owned NUL-terminated buffer and String returns are
// copied out into a host string.
type NativeType int

const (
	Void NativeType = iota
	Pointer
	Double
	Float
	SChar
	SShort
	SInt
	SLong
	UChar
	UShort
	UInt
	ULong
	SInt8
	SInt16
	SInt32
	SInt64
	UInt8
	UInt16
	UInt32
	UInt64
	String

	// C long double.  Only produced by the inferred dispatcher for
	// fractional numbers; it cannot be selected by name.
	extendedFloat

	numNativeTypes
)

var nativeTypeNames = [numNativeTypes]string{
	Void:          "void",
	Pointer:       "pointer",
	Double:        "double",
	Float:         "float",
	SChar:         "schar",
	SShort:        "sshort",
	SInt:          "sint",
	SLong:         "slong",
	UChar:         "uchar",
	UShort:        "ushort",
	UInt:          "uint",
	ULong:         "ulong",
	SInt8:         "sint8",
	SInt16:        "sint16",
	SInt32:        "sint32",
	SInt64:        "sint64",
	UInt8:         "uint8",
	UInt16:        "uint16",
	UInt32:        "uint32",
	UInt64:        "uint64",
	String:        "string",
	extendedFloat: "longdouble",
}

func (t NativeType) String() string {
	if t.Valid() {
		return nativeTypeNames[t]
	}
	return "NativeType(" + strconv.Itoa(int(t)) + ")"
}

// Returns true for members of the closed set.
func (t NativeType) Valid() bool {
	return t >= Void && t < numNativeTypes
}

// Class is the coarse classification used when matching dynamic values
// against declared types.
type Class int

const (
	OtherClass Class = iota
	IntegerLike
	FloatLike
)

func (c Class) String() string {
	switch c {
	case IntegerLike:
		return "integer-like"
	case FloatLike:
		return "float-like"
	default:
		return "other"
	}
}

// Classify is total: Void, Pointer, String and invalid values are
// OtherClass.
func Classify(t NativeType) Class {
	switch t {
	case SChar, SShort, SInt, SLong,
		UChar, UShort, UInt, ULong,
		SInt8, SInt16, SInt32, SInt64,
		UInt8, UInt16, UInt32, UInt64:
		return IntegerLike
	case Double, Float, extendedFloat:
		return FloatLike
	default:
		return OtherClass
	}
}

func IsIntegerLike(t NativeType) bool {
	return Classify(t) == IntegerLike
}

func IsFloatLike(t NativeType) bool {
	return Classify(t) == FloatLike
}

// The names scripts see as type constants.
var exportedNames = []string{
	"void", "pointer", "double", "float",
	"schar", "sshort", "sint", "slong",
	"uchar", "ushort", "uint", "ulong",
	"string",
}

// Returns the named type constants exposed to scripts.
func ExportedTypes() map[string]NativeType {
	result := make(map[string]NativeType, len(exportedNames))
	for _, name := range exportedNames {
		t, _ := LookupNativeType(name)
		result[name] = t
	}
	return result
}

// Returns the names accepted by LookupNativeType, sorted.  This is the
// exported set plus the fixed-width integer types.
func SelectableTypeNames() []string {
	names := make([]string, 0, int(numNativeTypes))
	for t := Void; t < numNativeTypes; t++ {
		if t == extendedFloat {
			continue
		}
		names = append(names, nativeTypeNames[t])
	}
	sort.Strings(names)
	return names
}

// Resolves a type name ("sint", "uint64", "string" ...) for typed bindings.
func LookupNativeType(name string) (NativeType, bool) {
	for t := Void; t < numNativeTypes; t++ {
		if t == extendedFloat {
			continue
		}
		if nativeTypeNames[t] == name {
			return t, true
		}
	}
	return Void, false
}

// Returns true for the signed integer types.
func isSigned(t NativeType) bool {
	switch t {
	case SChar, SShort, SInt, SLong, SInt8, SInt16, SInt32, SInt64:
		return true
	}
	return false
}
