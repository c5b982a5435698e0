// cffi_call opens a shared library and calls its functions.
//
//	cffi_call -lib libc.so.6 -sym abs -ret sint -args sint -- -42
//	cffi_call -lib libc.so.6 -sym srand 7
//	cffi_call -manifest libc.yml -sym strlen hello
//	cffi_call -manifest libc.yml -repl
//
// Without -ret and -args a -sym call is inferred: the return value is
// discarded and argument types are guessed from the literals.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"github.com/covscript/stdutils/binding"
	"github.com/covscript/stdutils/cffi"
	"github.com/covscript/stdutils/dlog"
	"github.com/covscript/stdutils/errors"
	"github.com/covscript/stdutils/stats"
	"github.com/covscript/stdutils/value"
)

var (
	libPath      = flag.String("lib", "", "Path of the shared library to open.")
	symbol       = flag.String("sym", "", "Name of the function to call.")
	retType      = flag.String("ret", "", "Declared return type. Empty means an inferred call.")
	argTypes     = flag.String("args", "", "Comma separated declared argument types.")
	manifestPath = flag.String("manifest", "", "YAML manifest declaring the library and its functions.")
	repl         = flag.Bool("repl", false, "Read calls interactively (\"name arg...\").")
	dump         = flag.Bool("dump", false, "Dump results and call metrics with go-spew.")
)

func usage() {
	fmt.Fprintf(
		os.Stderr,
		"usage: %s (-lib PATH | -manifest FILE) [-sym NAME] [-ret TYPE] "+
			"[-args T1,T2,...] [-repl] [VALUES...]\n\n"+
			"types: %s\n\n",
		os.Args[0],
		strings.Join(cffi.SelectableTypeNames(), ", "))
	flag.PrintDefaults()
}

// Builds the manifest for a -lib/-sym invocation.
func flagManifest() *binding.Manifest {
	f := binding.FunctionManifest{
		Name:     *symbol,
		Inferred: *retType == "" && *argTypes == "",
		Returns:  *retType,
	}
	if *argTypes != "" {
		for _, name := range strings.Split(*argTypes, ",") {
			f.Args = append(f.Args, strings.TrimSpace(name))
		}
	}
	return &binding.Manifest{
		Library:   *libPath,
		Functions: []binding.FunctionManifest{f},
	}
}

func loadManifest() (*binding.Manifest, error) {
	if *manifestPath == "" {
		return flagManifest(), nil
	}
	file, err := os.Open(*manifestPath)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %s", *manifestPath)
	}
	defer file.Close()
	return binding.LoadManifest(file)
}

type session struct {
	module   *binding.Module
	manifest *binding.Manifest
	bound    *binding.BoundLibrary
	metrics  *stats.MemoryStatsFactory
}

// Calls one bound function with literal arguments.
func (s *session) call(name string, literals []string) (value.Value, error) {
	decl, ok := s.manifest.Lookup(name)
	if !ok {
		return value.Null(), errors.Newf(
			"%s is not declared; known functions: %s",
			name,
			strings.Join(s.bound.Names(), ", "))
	}

	var args []value.Value
	if decl.Inferred {
		args = parseInferredArgs(literals)
	} else {
		sig, err := decl.Signature()
		if err != nil {
			return value.Null(), err
		}
		args, err = parseTypedArgs(literals, sig.Args)
		if err != nil {
			return value.Null(), err
		}
	}

	result, err := s.module.Invoke(s.bound.Functions[name], args...)
	if err != nil {
		return value.Null(), err
	}
	dlog.Debugf("%s(%s) = %s", name, strings.Join(literals, ", "), result)
	return result, nil
}

func (s *session) print(result value.Value) {
	if *dump {
		spew.Dump(result, s.metrics.Snapshot())
		return
	}
	fmt.Println(result)
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *manifestPath == "" && (*libPath == "" || *symbol == "") {
		usage()
		os.Exit(2)
	}

	code := run()
	_ = dlog.Flush()
	os.Exit(code)
}

func run() int {
	manifest, err := loadManifest()
	if err != nil {
		dlog.Errorf("%s", errors.GetMessage(err))
		return 1
	}

	metrics := stats.NewMemoryStatsFactory()
	module := binding.New(cffi.Options{Stats: metrics})
	bound, err := module.BindManifest(manifest)
	if err != nil {
		dlog.Errorf("%s", errors.GetMessage(err))
		return 1
	}
	defer bound.Close()

	s := &session{
		module:   module,
		manifest: manifest,
		bound:    bound,
		metrics:  metrics,
	}

	if *repl {
		return s.repl()
	}

	name := *symbol
	if name == "" {
		dlog.Errorf("-sym is required unless -repl is set")
		return 2
	}
	result, err := s.call(name, flag.Args())
	if err != nil {
		dlog.Errorf("%s", errors.GetMessage(err))
		return 1
	}
	s.print(result)
	return 0
}
