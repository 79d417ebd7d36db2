// Package dispatch implements the simple-command dispatcher (spec §4.5):
// classification in POSIX search order, the fork/no-fork decision, and the
// post-exec bookkeeping that follows either path.
//
// Grounded on the teacher's container/exec.go (Exec/ExecWithProcessFile's
// classify-then-run flow, re-exec-self trick) and cmd/exec.go's CLI
// wrapping, generalized from "run one process inside a running container"
// to "resolve and run one shell command."
package dispatch

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/moisam/laylash-engine/ast"
	"github.com/moisam/laylash-engine/cerrors"
	"github.com/moisam/laylash-engine/config"
)

// Kind names where a command name resolved to, in POSIX search order.
type Kind int

const (
	KindSpecialBuiltin Kind = iota
	KindFunction
	KindBuiltin
	KindExternal
	KindScriptFallback
)

func (k Kind) String() string {
	switch k {
	case KindSpecialBuiltin:
		return "special-builtin"
	case KindFunction:
		return "function"
	case KindBuiltin:
		return "builtin"
	case KindExternal:
		return "external"
	case KindScriptFallback:
		return "script-fallback"
	default:
		return "unknown"
	}
}

// Classification is the resolved outcome of searching for a command name.
type Classification struct {
	Kind       Kind
	Name       string
	Path       string // resolved absolute path, for KindExternal/KindScriptFallback
	Builtin    BuiltinFunc
	Function   ast.Node
	Fallback   *ScriptFallback // set for KindScriptFallback
}

// Forks reports whether this classification requires its own process
// (spec §4.5 phase 6: fork iff external, or a background pipeline member —
// the background-member half of that rule is the caller's to apply since
// it depends on pipeline position, not name resolution).
func (c Classification) Forks() bool {
	return c.Kind == KindExternal || c.Kind == KindScriptFallback
}

// FunctionTable resolves a shell function by name. Implemented by whatever
// owns the engine's function definitions (kept out of this package per the
// ast Non-goals: dispatch only consults the interface).
type FunctionTable interface {
	Lookup(name string) (ast.Node, bool)
}

// PathHash remembers command name -> resolved path lookups across the life
// of the shell (the `-h`/hash option, spec §6).
type PathHash struct {
	entries map[string]string
}

// NewPathHash returns an empty hash table.
func NewPathHash() *PathHash {
	return &PathHash{entries: make(map[string]string)}
}

// Lookup returns a previously hashed path for name.
func (h *PathHash) Lookup(name string) (string, bool) {
	p, ok := h.entries[name]
	return p, ok
}

// Remember records a resolved path for name.
func (h *PathHash) Remember(name, path string) {
	h.entries[name] = path
}

// Forget removes name's cached path, e.g. after PATH changes.
func (h *PathHash) Forget(name string) {
	delete(h.entries, name)
}

// ClassifyOptions bundles everything Classify needs to consult, mirroring
// the collaborators threaded through the rest of the engine.
type ClassifyOptions struct {
	Config    *config.Config
	Functions FunctionTable
	Builtins  *Registry
	Hash      *PathHash
	Aliases   ast.AliasTable
}

// Classify implements the POSIX search order of spec §4.5 phase 5: special
// built-in, function, regular built-in, slash-path, hashed path, then PATH
// search. It never yields the ENOEXEC script fallback itself: Dispatch
// applies that when starting the resolved path fails with ENOEXEC.
func Classify(name string, opts ClassifyOptions) (Classification, error) {
	if name == "" {
		return Classification{}, cerrors.Wrap(os.ErrInvalid, cerrors.ErrInternal, "dispatch.Classify")
	}

	if opts.Builtins != nil {
		if fn, ok := opts.Builtins.SpecialBuiltin(name); ok {
			return Classification{Kind: KindSpecialBuiltin, Name: name, Builtin: fn}, nil
		}
	}

	if opts.Functions != nil {
		if body, ok := opts.Functions.Lookup(name); ok {
			return Classification{Kind: KindFunction, Name: name, Function: body}, nil
		}
	}

	if opts.Builtins != nil {
		if fn, ok := opts.Builtins.Builtin(name); ok {
			return Classification{Kind: KindBuiltin, Name: name, Builtin: fn}, nil
		}
	}

	if strings.ContainsRune(name, '/') {
		if opts.Config != nil && opts.Config.Has(config.OptRestricted) {
			return Classification{}, cerrors.Wrap(cerrors.ErrRestrictedPath, cerrors.ErrRestrictedViolation, "dispatch.Classify: "+name)
		}
		abs, err := filepath.Abs(name)
		if err != nil {
			return Classification{}, cerrors.Wrap(err, cerrors.ErrExecNotFound, "dispatch.Classify")
		}
		if !isExecutable(abs) {
			return Classification{}, cerrors.Wrap(cerrors.ErrCommandNotFound, cerrors.ErrExecNotFound, "dispatch.Classify: "+name)
		}
		return Classification{Kind: KindExternal, Name: name, Path: abs}, nil
	}

	if opts.Config == nil || opts.Config.Has(config.OptHashAll) {
		if opts.Hash != nil {
			if path, ok := opts.Hash.Lookup(name); ok && isExecutable(path) {
				return Classification{Kind: KindExternal, Name: name, Path: path}, nil
			}
		}
	}

	path := searchPath(name, pathOf(opts.Config))
	if path == "" {
		return Classification{}, cerrors.Wrap(cerrors.ErrCommandNotFound, cerrors.ErrExecNotFound, "dispatch.Classify: "+name)
	}
	if opts.Hash != nil && (opts.Config == nil || opts.Config.Has(config.OptHashAll)) {
		opts.Hash.Remember(name, path)
	}
	return Classification{Kind: KindExternal, Name: name, Path: path}, nil
}

func pathOf(cfg *config.Config) string {
	if cfg != nil && cfg.Path != "" {
		return cfg.Path
	}
	return os.Getenv("PATH")
}

func searchPath(name, pathVar string) string {
	for _, dir := range strings.Split(pathVar, ":") {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, name)
		if isExecutable(candidate) {
			return candidate
		}
	}
	return ""
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0111 != 0
}

// CheckRestricted applies spec §4.5's restricted-shell policy: rejects
// names containing '/', write-redirection, and `exec` outright once
// startup has completed. It sees only the command name, not its
// arguments, so `command -p` is not rejected.
func CheckRestricted(cfg *config.Config, name string, hasOutputRedirect bool) error {
	if cfg == nil || !cfg.Has(config.OptRestricted) {
		return nil
	}
	if strings.ContainsRune(name, '/') {
		return cerrors.Wrap(cerrors.ErrRestrictedPath, cerrors.ErrRestrictedViolation, "restricted: "+name)
	}
	if hasOutputRedirect {
		return cerrors.Wrap(cerrors.ErrRestrictedRedirect, cerrors.ErrRestrictedViolation, "restricted: output redirection")
	}
	if name == "exec" {
		return cerrors.New(cerrors.ErrRestrictedViolation, "restricted", "exec")
	}
	return nil
}

// RestrictedReadonlyVars lists the variables a restricted shell keeps
// read-only (spec §4.5). Nothing in this repository marks them read-only:
// neither CheckRestricted nor Classify consults this list.
var RestrictedReadonlyVars = []string{"PATH", "SHELL", "ENV", "BASH_ENV"}
