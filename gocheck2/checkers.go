// Extensions to the go-check unittest framework.
//
// NOTE: see https://github.com/go-check/check/pull/6 for reasons why these
// checkers live here.
package gocheck2

import (
	"fmt"

	. "gopkg.in/check.v1"

	"github.com/covscript/stdutils/errors"
)

// -----------------------------------------------------------------------
// IsTrue / IsFalse checker.

type isBoolValueChecker struct {
	*CheckerInfo
	expected bool
}

func (checker *isBoolValueChecker) Check(
	params []interface{},
	names []string) (
	result bool,
	error string) {

	obtained, ok := params[0].(bool)
	if !ok {
		return false, "Argument to " + checker.Name + " must be bool"
	}

	return obtained == checker.expected, ""
}

// The IsTrue checker verifies that the obtained value is true.
//
// For example:
//
//     c.Assert(value, IsTrue)
//
var IsTrue Checker = &isBoolValueChecker{
	&CheckerInfo{Name: "IsTrue", Params: []string{"obtained"}},
	true,
}

// The IsFalse checker verifies that the obtained value is false.
//
// For example:
//
//     c.Assert(value, IsFalse)
//
var IsFalse Checker = &isBoolValueChecker{
	&CheckerInfo{Name: "IsFalse", Params: []string{"obtained"}},
	false,
}

// -----------------------------------------------------------------------
// HasKind checker.

type hasKindChecker struct {
	*CheckerInfo
}

func (checker *hasKindChecker) Check(
	params []interface{},
	names []string) (
	result bool,
	errMsg string) {

	if params[0] == nil {
		return false, "obtained error is nil"
	}
	err, ok := params[0].(error)
	if !ok {
		return false, "Obtained value must be an error"
	}

	var kind errors.Kind
	switch k := params[1].(type) {
	case errors.Kind:
		kind = k
	case string:
		kind = errors.Kind(k)
	default:
		return false, "Expected kind must be an errors.Kind or string"
	}

	if errors.HasKind(err, kind) {
		return true, ""
	}
	return false, fmt.Sprintf("error kind is %q", errors.KindOf(err))
}

// The HasKind checker verifies that the obtained error, or any error it
// wraps, was tagged with the expected errors.Kind.
//
// For example:
//
//     c.Assert(err, HasKind, cffi.TypeMismatch)
//
var HasKind Checker = &hasKindChecker{
	&CheckerInfo{Name: "HasKind", Params: []string{"obtained", "kind"}},
}
