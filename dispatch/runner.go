package dispatch

import (
	"os"
	"os/exec"
	"strings"

	"github.com/moisam/laylash-engine/ast"
	"github.com/moisam/laylash-engine/cerrors"
	"github.com/moisam/laylash-engine/pipeline"
	"github.com/moisam/laylash-engine/spawner"
)

// stageArgvEnv carries one pipeline stage's resolved argv across a
// self-re-exec, the same trick the teacher's container/exec.go uses
// (os.Executable() + an internal subcommand) to re-enter itself inside a
// different namespace. Here it lets a builtin or function sit as a
// non-last pipeline member: Go cannot fork the running process without
// also replacing its image, so giving a builtin its own process means
// re-execing the engine binary and telling it, via this variable, which
// stage to run and with what arguments.
const stageArgvEnv = "_LAYLASH_PIPELINE_STAGE_ARGV"

// Runner implements pipeline.StageRunner by resolving each stage through
// Classify and building the *exec.Cmd (or in-process call) that executes
// it.
type Runner struct {
	Options          ClassifyOptions
	ShellSelf        string // os.Executable() path, for re-exec of builtin stages
	ReExecSubcommand string // the cobra subcommand that re-enters RunReExecStage
	Symtab           ast.SymbolTable
}

// Command resolves stage and returns the *exec.Cmd that will run it as its
// own process, suitable as one pipeline member.
func (r *Runner) Command(stage pipeline.Stage) (*exec.Cmd, error) {
	if len(stage.Argv) == 0 {
		return nil, cerrors.Wrap(cerrors.ErrCommandNotFound, cerrors.ErrExecNotFound, "dispatch.Runner.Command: empty argv")
	}
	cls, err := Classify(stage.Argv[0], r.Options)
	if err != nil {
		return nil, err
	}

	if cls.Kind == KindExternal {
		return exec.Command(cls.Path, stage.Argv[1:]...), nil
	}

	// Builtin, special built-in, or function: needs its own process to
	// participate in a multi-stage pipeline, so re-exec the engine.
	self := r.ShellSelf
	if self == "" {
		if resolved, err := os.Executable(); err == nil {
			self = resolved
		}
	}
	cmd := exec.Command(self, r.ReExecSubcommand)
	cmd.Env = append(os.Environ(), stageArgvEnv+"="+strings.Join(stage.Argv, "\x00"))
	return cmd, nil
}

// RunInProcess executes stage directly against the given streams without
// forking, used for the lastpipe fast path (spec §4.4). It is only a true
// no-fork execution for builtins/special-builtins; a function stage
// returns an error, and an external program is still spawned as a child
// through spawner.Spawn and waited on synchronously, since
// Go cannot replace the shell's own process image with `execve` and keep
// running — documented deviation from the original's "last stage runs in
// the shell's own address space" for that one case.
func (r *Runner) RunInProcess(stage pipeline.Stage, stdin, stdout, stderr *os.File) (int, error) {
	if len(stage.Argv) == 0 {
		return 1, cerrors.Wrap(cerrors.ErrCommandNotFound, cerrors.ErrExecNotFound, "dispatch.Runner.RunInProcess: empty argv")
	}
	cls, err := Classify(stage.Argv[0], r.Options)
	if err != nil {
		return 127, err
	}

	switch cls.Kind {
	case KindSpecialBuiltin, KindBuiltin:
		env := ExecEnv{Args: stage.Argv, Stdin: stdin, Stdout: stdout, Stderr: stderr, Symtab: r.Symtab}
		if stdin == nil {
			env.Stdin = os.Stdin
		}
		return cls.Builtin(env)
	case KindFunction:
		return 0, cerrors.Wrap(cerrors.ErrCommandNotFound, cerrors.ErrInternal, "dispatch.Runner.RunInProcess: function bodies are driven by enginectl, not dispatch")
	default:
		cmd := exec.Command(cls.Path, stage.Argv[1:]...)
		cmd.Stdin = stdin
		cmd.Stdout = stdout
		cmd.Stderr = stderr
		if cmd.Stdin == nil {
			cmd.Stdin = os.Stdin
		}
		if _, err := spawner.Spawn(cmd); err != nil {
			return 126, err
		}
		if err := cmd.Wait(); err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				return exitErr.ExitCode(), nil
			}
			return 126, cerrors.Wrap(err, cerrors.ErrExecNotExecutable, "dispatch.Runner.RunInProcess")
		}
		return 0, nil
	}
}

// RunReExecStage is the implementation behind ReExecSubcommand: it decodes
// the argv this process was re-exec'd with and runs the builtin/special
// built-in stage in what is, for pipeline purposes, a fresh process with
// its own stdin/stdout already wired by the parent via ordinary fd
// inheritance. A stage that does not resolve to a builtin (a function, or
// a failed lookup) returns 127.
func RunReExecStage(opts ClassifyOptions, symtab ast.SymbolTable) int {
	encoded := os.Getenv(stageArgvEnv)
	if encoded == "" {
		return 1
	}
	argv := strings.Split(encoded, "\x00")
	cls, err := Classify(argv[0], opts)
	if err != nil || cls.Builtin == nil {
		return 127
	}
	status, err := cls.Builtin(ExecEnv{Args: argv, Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr, Symtab: symtab})
	if err != nil {
		return 1
	}
	return status
}
