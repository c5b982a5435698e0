package main

import (
	"strconv"

	"github.com/covscript/stdutils/cffi"
	"github.com/covscript/stdutils/errors"
	"github.com/covscript/stdutils/value"
)

// Parses a literal for a declared type.  "null" is accepted everywhere the
// bridge accepts the null value.
func parseTyped(literal string, t cffi.NativeType) (value.Value, error) {
	if literal == "null" {
		return value.Null(), nil
	}
	switch {
	case cffi.IsIntegerLike(t):
		i, err := strconv.ParseInt(literal, 0, 64)
		if err != nil {
			u, uerr := strconv.ParseUint(literal, 0, 64)
			if uerr != nil {
				return value.Null(), errors.Wrapf(err, "bad %s literal %q", t, literal)
			}
			i = int64(u)
		}
		return value.Int(i), nil
	case cffi.IsFloatLike(t):
		f, err := strconv.ParseFloat(literal, 64)
		if err != nil {
			return value.Null(), errors.Wrapf(err, "bad %s literal %q", t, literal)
		}
		return value.Float(f), nil
	case t == cffi.String:
		return value.String(literal), nil
	}
	return value.Null(), errors.Newf(
		"cannot parse %q as %s; only null is accepted",
		literal,
		t)
}

func parseTypedArgs(literals []string, types []cffi.NativeType) ([]value.Value, error) {
	if len(literals) != len(types) {
		return nil, errors.Newf(
			"expected %d arguments, got %d",
			len(types),
			len(literals))
	}
	args := make([]value.Value, len(literals))
	for i, literal := range literals {
		v, err := parseTyped(literal, types[i])
		if err != nil {
			return nil, errors.Wrapf(err, "argument %d", i)
		}
		args[i] = v
	}
	return args, nil
}

// Guesses a literal's kind for inferred calls.
func parseInferred(literal string) value.Value {
	if literal == "null" {
		return value.Null()
	}
	if i, err := strconv.ParseInt(literal, 0, 64); err == nil {
		return value.Int(i)
	}
	if f, err := strconv.ParseFloat(literal, 64); err == nil {
		return value.Float(f)
	}
	return value.String(literal)
}

func parseInferredArgs(literals []string) []value.Value {
	args := make([]value.Value, len(literals))
	for i, literal := range literals {
		args[i] = parseInferred(literal)
	}
	return args
}
