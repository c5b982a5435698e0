// This module implements functions which manipulate errors and provide stack
// trace information.  Errors may carry a Kind, a short machine readable tag
// that callers can switch on without parsing messages.
//
// NOTE: This package intentionally mirrors the standard "errors" module.
// All stdutils code should use this.
package errors

import (
	"bytes"
	"fmt"
	"reflect"
	"runtime"
	"sync"
)

// Machine readable classification of an error.  The empty Kind means
// "unclassified".
type Kind string

// This interface exposes additional information about the error.
type StdutilsError interface {
	// This returns the error message without the stack trace.
	GetMessage() string

	// This returns the wrapped error.  This returns nil if this does not wrap
	// another error.
	GetInner() error

	// This returns the kind the error was created with (may be empty).  Use
	// KindOf to search the whole wrap chain.
	GetKind() Kind

	// Implements the built-in error interface.
	Error() string

	// Returns stack addresses as a string that can be supplied to
	// a helper tool to get the actual stack trace.
	StackAddrs() string

	// Returns stack frames.
	StackFrames() []StackFrame

	// Returns string representation of stack frames.
	GetStack() string
}

// Represents a single stack frame.
type StackFrame struct {
	PC         uintptr
	Func       *runtime.Func
	FuncName   string
	File       string
	LineNumber int
}

type baseError struct {
	msg   string
	kind  Kind
	inner error

	stack       []uintptr
	framesOnce  sync.Once
	stackFrames []StackFrame
}

// This returns the error string without stack trace information.
func GetMessage(err interface{}) string {
	switch e := err.(type) {
	case StdutilsError:
		return extractFullErrorMessage(e, false)
	case runtime.Error:
		return runtime.Error(e).Error()
	case error:
		return e.Error()
	default:
		return "Passed a non-error to GetMessage"
	}
}

// This returns a string with all available error information, including inner
// errors that are wrapped by this errors.
func (e *baseError) Error() string {
	return extractFullErrorMessage(e, true)
}

// Implements StdutilsError interface.
func (e *baseError) GetMessage() string {
	return e.msg
}

// Implements StdutilsError interface.
func (e *baseError) GetInner() error {
	return e.inner
}

// Implements StdutilsError interface.
func (e *baseError) GetKind() Kind {
	return e.kind
}

// Unwrap lets the standard library's errors.Is / errors.As see through.
func (e *baseError) Unwrap() error {
	return e.inner
}

// Implements StdutilsError interface.
func (e *baseError) StackAddrs() string {
	if len(e.stack) == 0 {
		return ""
	}
	buf := bytes.NewBuffer(make([]byte, 0, len(e.stack)*8))
	for _, pc := range e.stack {
		fmt.Fprintf(buf, "0x%x ", pc)
	}
	bufBytes := buf.Bytes()
	return string(bufBytes[:len(bufBytes)-1])
}

// Implements StdutilsError interface.  Inlined calls are expanded into
// their own frames.
func (e *baseError) StackFrames() []StackFrame {
	e.framesOnce.Do(func() {
		e.stackFrames = make([]StackFrame, 0, len(e.stack))
		if len(e.stack) == 0 {
			return
		}
		frames := runtime.CallersFrames(e.stack)
		for {
			f, more := frames.Next()
			e.stackFrames = append(e.stackFrames, StackFrame{
				PC:         f.PC,
				Func:       f.Func,
				FuncName:   f.Function,
				File:       f.File,
				LineNumber: f.Line,
			})
			if !more {
				break
			}
		}
	})
	return e.stackFrames
}

// Implements StdutilsError interface.
func (e *baseError) GetStack() string {
	buf := bytes.NewBuffer(make([]byte, 0, 256))
	for _, frame := range e.StackFrames() {
		_, _ = buf.WriteString(frame.FuncName)
		_, _ = buf.WriteString("\n")
		fmt.Fprintf(buf, "\t%s:%d +0x%x\n",
			frame.File, frame.LineNumber, frame.PC)
	}
	return buf.String()
}

// This returns a new baseError initialized with the given message and
// the current stack trace.
func New(msg string) StdutilsError {
	return new(nil, "", msg)
}

// Same as New, but with fmt.Printf-style parameters.
func Newf(format string, args ...interface{}) StdutilsError {
	return new(nil, "", fmt.Sprintf(format, args...))
}

// Same as Newf, but tags the error with kind.
func NewKindf(kind Kind, format string, args ...interface{}) StdutilsError {
	return new(nil, kind, fmt.Sprintf(format, args...))
}

// Wraps another error in a new baseError.
func Wrap(err error, msg string) StdutilsError {
	return new(err, "", msg)
}

// Same as Wrap, but with fmt.Printf-style parameters.
func Wrapf(err error, format string, args ...interface{}) StdutilsError {
	return new(err, "", fmt.Sprintf(format, args...))
}

// Same as Wrapf, but tags the outer error with kind.
func WrapKindf(
	err error,
	kind Kind,
	format string,
	args ...interface{}) StdutilsError {

	return new(err, kind, fmt.Sprintf(format, args...))
}

// Internal helper function to create new baseError objects,
// note that if there is more than one level of redirection to call this function,
// stack frame information will include that level too.
func new(err error, kind Kind, msg string) *baseError {
	stack := make([]uintptr, 200)
	stackLength := runtime.Callers(3, stack)
	return &baseError{
		msg:   msg,
		kind:  kind,
		stack: stack[:stackLength],
		inner: err,
	}
}

// Returns the outermost non-empty Kind in err's wrap chain, or "" if no
// error in the chain is classified.
func KindOf(err error) Kind {
	for i := 0; err != nil && i < 20; i++ {
		if stdErr, ok := err.(StdutilsError); ok {
			if k := stdErr.GetKind(); k != "" {
				return k
			}
		}
		err = unwrapError(err)
	}
	return ""
}

// Returns true if err (or anything it wraps) was tagged with kind.
func HasKind(err error, kind Kind) bool {
	for i := 0; err != nil && i < 20; i++ {
		if stdErr, ok := err.(StdutilsError); ok && stdErr.GetKind() == kind {
			return true
		}
		err = unwrapError(err)
	}
	return false
}

// Constructs full error message for a given StdutilsError by traversing
// all of its inner errors. If includeStack is True it will also include
// stack trace from deepest StdutilsError in the chain.
func extractFullErrorMessage(e StdutilsError, includeStack bool) string {
	var ok bool
	var lastErr StdutilsError
	errMsg := bytes.NewBuffer(make([]byte, 0, 1024))

	stdErr := e
	for {
		lastErr = stdErr
		if k := stdErr.GetKind(); k != "" {
			errMsg.WriteString("[")
			errMsg.WriteString(string(k))
			errMsg.WriteString("] ")
		}
		errMsg.WriteString(stdErr.GetMessage())

		innerErr := stdErr.GetInner()
		if innerErr == nil {
			break
		}
		stdErr, ok = innerErr.(StdutilsError)
		if !ok {
			// We have reached the end and traveresed all inner errors.
			errMsg.WriteString("\n")
			errMsg.WriteString(innerErr.Error())
			break
		}
		errMsg.WriteString("\n")
	}
	if includeStack {
		errMsg.WriteString("\nORIGINAL STACK TRACE:\n")
		errMsg.WriteString(lastErr.GetStack())
	}
	return errMsg.String()
}

// Return a wrapped error or nil if there is none.
func unwrapError(ierr error) (nerr error) {
	if stdErr, ok := ierr.(StdutilsError); ok {
		return stdErr.GetInner()
	}
	if u, ok := ierr.(interface{ Unwrap() error }); ok {
		return u.Unwrap()
	}

	// At this point, if anything goes wrong, just return nil.
	defer func() {
		if x := recover(); x != nil {
			nerr = nil
		}
	}()

	// Go system errors have a convention but paradoxically no
	// interface.  All of these panic on error.
	errV := reflect.ValueOf(ierr).Elem()
	errV = errV.FieldByName("Err")
	return errV.Interface().(error)
}

// Keep peeling away layers or context until a primitive error is revealed.
func RootError(ierr error) (nerr error) {
	nerr = ierr
	for i := 0; i < 20; i++ {
		terr := unwrapError(nerr)
		if terr == nil {
			return nerr
		}
		nerr = terr
	}
	return fmt.Errorf("too many iterations: %T", nerr)
}

// Perform a deep check, unwrapping errors as much as possilbe and
// comparing the string version of the error.
func IsError(err, errConst error) bool {
	if err == errConst {
		return true
	}
	rootErrStr := ""
	rootErr := RootError(err)
	if rootErr != nil {
		rootErrStr = rootErr.Error()
	}
	errConstStr := ""
	if errConst != nil {
		errConstStr = errConst.Error()
	}
	return rootErrStr == errConstStr
}
