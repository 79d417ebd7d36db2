package dispatch

import (
	"os"
	"strings"

	"github.com/moisam/laylash-engine/ast"
	"github.com/moisam/laylash-engine/cerrors"
)

// shebangScanLimit is the documented, preserved-not-derived limit on how
// much of a file the script fallback reads looking for a `#!` line (spec
// §4.5 "Script fallback", Design Notes open question (c)): anything past
// this many bytes is silently unavailable to the interpreter-line parser.
const shebangScanLimit = 256

// ScriptFallback is the resolved interpreter to invoke for a file that
// exec returned ENOEXEC on.
type ScriptFallback struct {
	Interpreter string
	Arg         string // the single optional argument after the interpreter
}

// ResolveScriptFallback implements spec §4.5's script fallback: read up to
// shebangScanLimit bytes; if they begin "#!", split on the first run of
// whitespace into an interpreter and at most one argument; otherwise fall
// back to the shell's own path, or the `shell` alias if the alias table
// defines one.
func ResolveScriptFallback(path string, shellPath string, aliases ast.AliasTable) (ScriptFallback, error) {
	f, err := os.Open(path)
	if err != nil {
		return ScriptFallback{}, cerrors.Wrap(err, cerrors.ErrExecNotExecutable, "dispatch.ResolveScriptFallback")
	}
	defer f.Close()

	buf := make([]byte, shebangScanLimit)
	n, _ := f.Read(buf)
	buf = buf[:n]

	if len(buf) >= 2 && buf[0] == '#' && buf[1] == '!' {
		line := string(buf[2:])
		if idx := strings.IndexByte(line, '\n'); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(strings.TrimRight(line, "\r"))
		if i := strings.IndexAny(line, " \t"); i >= 0 {
			return ScriptFallback{Interpreter: line[:i], Arg: strings.TrimSpace(line[i+1:])}, nil
		}
		if line != "" {
			return ScriptFallback{Interpreter: line}, nil
		}
		// "#!" with nothing after it: fall through to the shell itself.
	}

	interp := shellPath
	if aliases != nil {
		if aliased, ok := aliases.Lookup("shell"); ok && aliased != "" {
			interp = aliased
		}
	}
	return ScriptFallback{Interpreter: interp}, nil
}

// Argv assembles the full argv for invoking the fallback interpreter
// against the original path and arguments.
func (s ScriptFallback) Argv(originalPath string, originalArgs []string) []string {
	argv := []string{s.Interpreter}
	if s.Arg != "" {
		argv = append(argv, s.Arg)
	}
	argv = append(argv, originalPath)
	argv = append(argv, originalArgs...)
	return argv
}
