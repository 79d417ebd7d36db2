package dispatch

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/moisam/laylash-engine/ast"
	"github.com/moisam/laylash-engine/cerrors"
	"github.com/moisam/laylash-engine/sigrouter"
	"github.com/moisam/laylash-engine/spawner"
)

// ExecuteOptions bundles what Dispatch needs beyond the command's own
// node: the classification collaborators and the shell's own path/alias
// table for the script fallback.
type ExecuteOptions struct {
	Classify  ClassifyOptions
	Symtab    ast.SymbolTable
	Aliases   ast.AliasTable
	ShellPath string

	// Router, when set, is used to wait for a spawned external command
	// instead of a raw wait4 — the only way to observe SIGINT during the
	// wait (spec §4.1/§5 Cancellation) and to stay on the ring-backed path
	// that doesn't race Reap()'s own SIGCHLD-driven wait4 (sigrouter's
	// WaitForeground doc). Left nil only for tests that don't exercise
	// cancellation.
	Router *sigrouter.Router
}

// Dispatch runs one simple command node and returns its exit status for
// the non-pipeline case (pipeline membership is the pipeline package's
// concern; it calls Classify/Runner directly rather than through Dispatch,
// since fork is mandatory there). Of spec §4.5's phases it covers the
// empty-argv case, classification and execution; it applies no
// redirections and does no post-exec bookkeeping ($_, scope merge, DEBUG
// trap).
func Dispatch(node ast.Node, opts ExecuteOptions) (int, error) {
	argv := node.Args()
	if len(argv) == 0 {
		// Empty-word rule (§4.5 phase 4): only reachable here when the
		// caller already determined redirections exist with no command
		// word; NULLCMD/cat fallback is the caller's responsibility since
		// it depends on $NULLCMD, which lives in the symbol table.
		return 0, nil
	}

	cls, err := Classify(argv[0], opts.Classify)
	if err != nil {
		if cerrors.IsKind(err, cerrors.ErrExecNotFound) {
			fmt.Fprintf(os.Stderr, "%s: command not found\n", argv[0])
			return 127, nil
		}
		if cerrors.IsKind(err, cerrors.ErrRestrictedViolation) {
			fmt.Fprintf(os.Stderr, "%s: restricted\n", argv[0])
			return 1, nil
		}
		return 1, err
	}

	switch cls.Kind {
	case KindSpecialBuiltin, KindBuiltin:
		status, err := cls.Builtin(ExecEnv{
			Args:   argv,
			Stdin:  os.Stdin,
			Stdout: os.Stdout,
			Stderr: os.Stderr,
			Symtab: opts.Symtab,
		})
		return status, err
	case KindFunction:
		return 0, cerrors.Wrap(cerrors.ErrCommandNotFound, cerrors.ErrInternal, "dispatch.Dispatch: function bodies are driven by enginectl")
	default:
		return runExternal(cls.Path, argv, opts)
	}
}

func runExternal(path string, argv []string, opts ExecuteOptions) (int, error) {
	cmd := exec.Command(path, argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	proc, err := spawner.Spawn(cmd)
	if err != nil {
		if isENOEXEC(err) {
			return runScriptFallback(path, argv, opts)
		}
		if cerrors.IsKind(err, cerrors.ErrForkExhaustion) {
			return 1, err
		}
		return 126, err
	}

	if opts.Router != nil {
		status, err := opts.Router.WaitForeground(proc.Pid)
		if err != nil && err != cerrors.ErrInterrupted {
			return 0, err
		}
		return status, nil
	}

	var ws syscall.WaitStatus
	if _, err := syscall.Wait4(proc.Pid, &ws, 0, nil); err != nil {
		return 0, cerrors.Wrap(err, cerrors.ErrInternal, "dispatch.runExternal: wait4")
	}
	switch {
	case ws.Exited():
		return ws.ExitStatus(), nil
	case ws.Signaled():
		return 128 + int(ws.Signal()), nil
	default:
		return 0, nil
	}
}

func runScriptFallback(path string, argv []string, opts ExecuteOptions) (int, error) {
	fb, err := ResolveScriptFallback(path, opts.ShellPath, opts.Aliases)
	if err != nil {
		return 126, err
	}
	fallbackArgv := fb.Argv(path, argv[1:])
	interpPath, lookErr := exec.LookPath(fallbackArgv[0])
	if lookErr != nil {
		return 126, cerrors.Wrap(lookErr, cerrors.ErrExecNotExecutable, "dispatch.runScriptFallback")
	}
	return runExternal(interpPath, fallbackArgv, opts)
}

func isENOEXEC(err error) bool {
	for {
		switch e := err.(type) {
		case *os.SyscallError:
			err = e.Err
		case *os.PathError:
			err = e.Err
		case *cerrors.EngineError:
			err = e.Unwrap()
		case syscall.Errno:
			return e == syscall.ENOEXEC
		default:
			return false
		}
		if err == nil {
			return false
		}
	}
}
