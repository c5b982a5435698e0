// Package dlog is a small leveled logger on top of the standard log package.
// Output goes through a flag-configurable buffered console (stderr by
// default).  Debug output is off unless -dlog.verbose is set.
package dlog

import (
	"flag"
	"fmt"
	"io"
	"log"
	"sync/atomic"
)

var (
	logger  = log.New(bufferedConsole, "", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	verbose int32
)

func init() {
	flag.Var(verboseFlag{}, "dlog.verbose", "Enable debug level logging.")
}

type verboseFlag struct{}

func (verboseFlag) String() string {
	if IsVerbose() {
		return "true"
	}
	return "false"
}

func (verboseFlag) Set(s string) error {
	switch s {
	case "true", "1":
		SetVerbose(true)
	case "false", "0":
		SetVerbose(false)
	default:
		return fmt.Errorf("invalid boolean %q", s)
	}
	return nil
}

func (verboseFlag) IsBoolFlag() bool { return true }

// Turns debug level logging on or off.
func SetVerbose(v bool) {
	if v {
		atomic.StoreInt32(&verbose, 1)
	} else {
		atomic.StoreInt32(&verbose, 0)
	}
}

func IsVerbose() bool {
	return atomic.LoadInt32(&verbose) != 0
}

// Redirects log output; intended for tests and embedding hosts.
func SetOutput(w io.Writer) {
	bufferedConsole.setBase(w)
}

// Flushes buffered console output.
func Flush() error {
	return bufferedConsole.Flush()
}

func output(level string, format string, args ...interface{}) {
	_ = logger.Output(3, level+" "+fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...interface{}) {
	if IsVerbose() {
		output("D", format, args...)
	}
}

func Infof(format string, args ...interface{}) {
	output("I", format, args...)
}

func Warningf(format string, args ...interface{}) {
	output("W", format, args...)
}

func Errorf(format string, args ...interface{}) {
	output("E", format, args...)
}
