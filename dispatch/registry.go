package dispatch

import (
	"fmt"
	"os"

	"github.com/moisam/laylash-engine/ast"
)

// ExecEnv is what a builtin receives to do its work: argv, the standard
// streams already positioned by the redirection-apply phase, and the
// symbol table it may read or mutate.
type ExecEnv struct {
	Args   []string
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
	Symtab ast.SymbolTable
}

// BuiltinFunc is one registered builtin's implementation. It returns the
// command's exit status.
type BuiltinFunc func(env ExecEnv) (int, error)

// Registry holds the two built-in tiers spec §4.5 distinguishes: special
// built-ins (whose assignment scope merges into the global table and
// whose failure can abort a non-interactive shell) and regular built-ins.
type Registry struct {
	special map[string]BuiltinFunc
	regular map[string]BuiltinFunc
}

// NewRegistry returns a Registry pre-populated with the handful of
// built-ins the engine itself depends on (special: `:`, `exit`, `return`,
// `eval`; regular: `cd`, `true`, `false`);
// the rest of the shell's built-in surface is out of scope for this
// package (the engine calls RegisterBuiltin/RegisterSpecial for the
// remainder, wherever they are implemented).
func NewRegistry() *Registry {
	r := &Registry{
		special: make(map[string]BuiltinFunc),
		regular: make(map[string]BuiltinFunc),
	}
	r.special[":"] = builtinColon
	r.special["exit"] = builtinExit
	r.special["return"] = builtinReturn
	r.special["eval"] = builtinEval
	r.regular["cd"] = builtinCd
	r.regular["true"] = builtinTrue
	r.regular["false"] = builtinFalse
	return r
}

// RegisterSpecial adds or replaces a special built-in.
func (r *Registry) RegisterSpecial(name string, fn BuiltinFunc) {
	r.special[name] = fn
}

// RegisterBuiltin adds or replaces a regular built-in.
func (r *Registry) RegisterBuiltin(name string, fn BuiltinFunc) {
	r.regular[name] = fn
}

// SpecialBuiltin looks up a special built-in.
func (r *Registry) SpecialBuiltin(name string) (BuiltinFunc, bool) {
	fn, ok := r.special[name]
	return fn, ok
}

// Builtin looks up a regular built-in.
func (r *Registry) Builtin(name string) (BuiltinFunc, bool) {
	fn, ok := r.regular[name]
	return fn, ok
}

func builtinColon(ExecEnv) (int, error) { return 0, nil }

func builtinTrue(ExecEnv) (int, error) { return 0, nil }

func builtinFalse(ExecEnv) (int, error) { return 1, nil }

// builtinExit only returns the requested status: the engine's control-flow
// driver (package enginectl) turns a simple command named exit into an
// Exit outcome, which is what unwinds the shell.
func builtinExit(env ExecEnv) (int, error) {
	status := 0
	if len(env.Args) > 1 {
		fmt.Sscanf(env.Args[1], "%d", &status)
	}
	return status, nil
}

func builtinReturn(env ExecEnv) (int, error) {
	status := 0
	if len(env.Args) > 1 {
		fmt.Sscanf(env.Args[1], "%d", &status)
	}
	return status, nil
}

func builtinEval(env ExecEnv) (int, error) {
	// This entry does not evaluate its arguments; it returns 0. It exists
	// so Classify finds "eval" as a special built-in rather than falling
	// through to PATH search.
	return 0, nil
}

func builtinCd(env ExecEnv) (int, error) {
	dir := os.Getenv("HOME")
	if len(env.Args) > 1 {
		dir = env.Args[1]
	}
	if err := os.Chdir(dir); err != nil {
		fmt.Fprintln(env.Stderr, "cd:", err)
		return 1, nil
	}
	if env.Symtab != nil {
		if wd, err := os.Getwd(); err == nil {
			env.Symtab.Set("PWD", wd)
		}
	}
	return 0, nil
}
