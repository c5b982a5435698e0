package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/covscript/stdutils/dlog"
	"github.com/covscript/stdutils/errors"
)

const historyFile = ".cffi_call_history"

// Reads "name arg..." lines until EOF or :quit.
func (s *session) repl() int {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(func(line string) []string {
		var matches []string
		for _, name := range s.bound.Names() {
			if strings.HasPrefix(name, line) {
				matches = append(matches, name)
			}
		}
		return matches
	})

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	fmt.Printf("%s: %s\n", s.bound.Path, strings.Join(s.bound.Names(), ", "))
	for {
		line, err := ln.Prompt("cffi> ")
		if err == io.EOF || err == liner.ErrPromptAborted {
			fmt.Println()
			return 0
		}
		if err != nil {
			dlog.Errorf("%s", errors.GetMessage(err))
			return 1
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		ln.AppendHistory(line)

		switch fields[0] {
		case ":quit":
			return 0
		case ":list":
			for _, f := range s.manifest.Functions {
				sig, _ := f.Signature()
				if f.Inferred {
					fmt.Printf("  %s (inferred)\n", f.Name)
				} else {
					fmt.Printf("  %s %s\n", f.Name, sig)
				}
			}
			continue
		}

		result, err := s.call(fields[0], fields[1:])
		if err != nil {
			fmt.Fprintln(os.Stderr, errors.GetMessage(err))
			continue
		}
		s.print(result)
	}
}
