// Package pipeline builds one process group out of an ordered list of
// pipeline stages: it allocates the connecting pipes, forks each stage,
// wires stdin/stdout across the stage boundaries, and assigns the whole
// group to a single pgid (spec §4.4).
//
// The fd-wiring and PTY-adjacent plumbing here is grounded on the teacher's
// container/exec.go, which opens a pipe2-style fd pair, forks, and dup2's
// the right end into the child before exec — this package generalizes that
// from "one user process" to "n pipeline stages" connected back to back.
package pipeline

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/moisam/laylash-engine/ast"
	"github.com/moisam/laylash-engine/cerrors"
	"github.com/moisam/laylash-engine/jobtable"
	"github.com/moisam/laylash-engine/logging"
	"github.com/moisam/laylash-engine/sigrouter"
	"github.com/moisam/laylash-engine/spawner"
	"github.com/moisam/laylash-engine/terminal"
	"github.com/moisam/laylash-engine/trap"
)

// Stage is one command in a pipeline: its node in the syntax tree plus the
// argv the dispatcher resolved for it.
type Stage struct {
	Node ast.Node
	Argv []string
}

// StageRunner builds the *exec.Cmd that will execute one stage. Its
// implementation (owned by the dispatch package) decides whether the stage
// execs an external program directly or, for a builtin/function appearing
// as a non-last pipeline member, re-execs the engine binary against an
// internal dispatch entry point — mirroring the teacher's own
// os.Executable()-based re-exec trick in container/exec.go, since a
// builtin needs its own process (and therefore its own fd table) to sit
// inside a pipeline, and the Go runtime cannot fork without exec.
type StageRunner interface {
	Command(stage Stage) (*exec.Cmd, error)

	// RunInProcess executes stage.Node directly against the given
	// file descriptors without forking, used for the lastpipe fast path.
	RunInProcess(stage Stage, stdin, stdout, stderr *os.File) (int, error)
}

// BuildOptions configures one pipeline construction.
type BuildOptions struct {
	Foreground bool
	JobControl bool
	Lastpipe   bool
	Pipefail   bool
	Invert     bool // leading `!`
	Command    string

	Runner   StageRunner
	Jobs     *jobtable.Table
	Router   *sigrouter.Router
	Arbiter  *terminal.Arbiter
	Symtab   ast.SymbolTable
	Logger   bool // whether to log "[n] pid" on backgrounding

	// TrapQueue/TrapTable/TrapRunner, when all set, let Build drain pending
	// trap deliveries immediately after each foreground member's wait
	// returns (spec §4.8). Left nil, Build still runs the pipeline
	// correctly; it just never fires a trap queued during the wait.
	TrapQueue  *trap.Queue
	TrapTable  *trap.Table
	TrapRunner trap.Runner
}

// Result is what Build produces once the pipeline has been launched.
type Result struct {
	Job    *jobtable.Job
	Status int // only meaningful once the pipeline has completed
}

// Build runs a full pipeline per spec §4.4: it allocates len(stages)-1
// pipes, forks (or, for the lastpipe fast path, directly runs) each stage,
// assigns one process group, registers it with the job table, and — for a
// foreground pipeline — transfers the terminal and waits for every member.
func Build(stages []Stage, opts BuildOptions) (*Result, error) {
	if len(stages) == 0 {
		return nil, cerrors.Wrap(fmt.Errorf("no stages"), cerrors.ErrInternal, "pipeline.Build")
	}

	useLastpipe := opts.Lastpipe && opts.Foreground && !opts.JobControl && len(stages) > 1

	forkCount := len(stages)
	if useLastpipe {
		forkCount--
	}

	pipes := make([][2]int, 0, len(stages)-1)
	for i := 0; i < len(stages)-1; i++ {
		fds := make([]int, 2)
		if err := unix.Pipe2(fds, unix.O_CLOEXEC); err != nil {
			closeAllPipes(pipes)
			return nil, cerrors.Wrap(err, cerrors.ErrResource, "pipeline.Build: pipe")
		}
		pipes = append(pipes, [2]int{fds[0], fds[1]})
	}

	var (
		pgid    int
		pids    = make([]int, 0, forkCount)
		cmds    = make([]*exec.Cmd, 0, forkCount)
		lastIdx = len(stages) - 1
	)

	for i, stage := range stages {
		isLast := i == lastIdx
		if isLast && useLastpipe {
			continue
		}

		cmd, err := opts.Runner.Command(stage)
		if err != nil {
			killAll(pids)
			closeAllPipes(pipes)
			return nil, err
		}

		if i > 0 {
			cmd.Stdin = os.NewFile(uintptr(pipes[i-1][0]), "pipe-read")
		}
		if i < len(stages)-1 {
			cmd.Stdout = os.NewFile(uintptr(pipes[i][1]), "pipe-write")
		}
		if cmd.Stdin == nil {
			cmd.Stdin = os.Stdin
		}
		if cmd.Stdout == nil {
			cmd.Stdout = os.Stdout
		}
		if cmd.Stderr == nil {
			cmd.Stderr = os.Stderr
		}

		cmd.SysProcAttr = &syscall.SysProcAttr{
			Setpgid: true,
			Pgid:    pgid, // 0 on the first stage: become the leader
		}

		proc, err := spawner.Spawn(cmd)
		if err != nil {
			killAll(pids)
			closeAllPipes(pipes)
			return nil, err
		}
		if pgid == 0 {
			pgid = proc.Pid
		} else {
			// Belt-and-braces: set it from the parent too, in case the
			// child hasn't reached its own setpgid yet (spec §4.4 step 6).
			_ = syscall.Setpgid(proc.Pid, pgid)
		}
		pids = append(pids, proc.Pid)
		cmds = append(cmds, cmd)
	}

	var lastpipeStdin *os.File
	if useLastpipe && lastIdx > 0 {
		// Claimed before the parent-side close sweep below: this stage
		// runs in-process rather than forking, so its stdin is the one
		// pipe end the parent itself keeps open.
		lastpipeStdin = os.NewFile(uintptr(pipes[lastIdx-1][0]), "pipe-read")
	}
	closeRemainingPipes(pipes, lastpipeStdin)

	var lastStatus int
	if useLastpipe {
		last := stages[lastIdx]
		status, err := opts.Runner.RunInProcess(last, lastpipeStdin, os.Stdout, os.Stderr)
		if lastpipeStdin != nil {
			lastpipeStdin.Close()
		}
		if err != nil {
			return nil, err
		}
		lastStatus = status
	}

	job := &jobtable.Job{
		Command:   opts.Command,
		Pgid:      pgid,
		Pids:      pids,
		ExitCodes: make([]int, len(pids)),
	}
	if opts.JobControl {
		job.SetFlag(jobtable.JobControlled, true)
	}
	if opts.Foreground {
		job.SetFlag(jobtable.Foreground, true)
	}

	if opts.Jobs != nil {
		if _, err := opts.Jobs.Add(job); err != nil {
			killAll(pids)
			return nil, err
		}
	}
	if opts.Symtab != nil && pgid != 0 {
		opts.Symtab.Set("!", strconv.Itoa(pgid))
	}

	if !opts.Foreground {
		if opts.Logger {
			logging.Default().Info("pipeline backgrounded", "job", job.Num, "pgid", pgid)
		}
		return &Result{Job: job}, nil
	}

	if opts.Arbiter != nil && pgid != 0 {
		if err := opts.Arbiter.TransferToJob(pgid); err != nil {
			logging.Default().Warn("terminal handoff failed", "err", err)
		}
	}

	for _, pid := range pids {
		status, err := waitMember(opts.Router, pid)
		drainTraps(opts)
		if err != nil {
			if opts.Arbiter != nil && pgid != 0 {
				opts.Arbiter.ReturnToShell()
			}
			return nil, err
		}
		idx := indexOfPid(pids, pid)
		job.ExitCodes[idx] = status
		job.TerminatedCount++
		job.ExitBits |= 1 << uint(idx)
	}

	if opts.Arbiter != nil && pgid != 0 {
		if err := opts.Arbiter.ReturnToShell(); err != nil {
			logging.Default().Warn("terminal return failed", "err", err)
		}
	}

	var status int
	if opts.Jobs != nil {
		status = opts.Jobs.AggregateStatus(job, opts.Pipefail)
	} else if len(job.ExitCodes) > 0 {
		status = job.ExitCodes[len(job.ExitCodes)-1]
	}
	if useLastpipe {
		status = lastStatus
	}
	if opts.Invert {
		status = invert(status)
	}
	if opts.Jobs != nil {
		opts.Jobs.Remove(job.Num)
	}

	return &Result{Job: job, Status: status}, nil
}

// drainTraps runs any trap queued while the caller was blocked on
// waitMember (spec §4.8's "immediately after wait returns"). A no-op if
// the caller didn't wire a trap queue/table/runner.
func drainTraps(opts BuildOptions) {
	if opts.TrapQueue == nil || opts.TrapTable == nil || opts.TrapRunner == nil {
		return
	}
	if err := opts.TrapQueue.DrainPending(opts.TrapTable, opts.TrapRunner); err != nil {
		logging.Default().Warn("trap body failed", "err", err)
	}
}

func waitMember(router *sigrouter.Router, pid int) (int, error) {
	if router != nil {
		return router.WaitForeground(pid)
	}
	var ws syscall.WaitStatus
	_, err := syscall.Wait4(pid, &ws, 0, nil)
	if err != nil {
		return 0, cerrors.Wrap(err, cerrors.ErrInternal, "pipeline.waitMember")
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

func invert(status int) int {
	if status == 0 {
		return 1
	}
	return 0
}

func indexOfPid(pids []int, pid int) int {
	for i, p := range pids {
		if p == pid {
			return i
		}
	}
	return -1
}

func killAll(pids []int) {
	for _, pid := range pids {
		syscall.Kill(pid, syscall.SIGKILL)
	}
}

func closeAllPipes(pipes [][2]int) {
	for _, p := range pipes {
		syscall.Close(p[0])
		syscall.Close(p[1])
	}
}

// closeRemainingPipes closes every pipe fd except the one reserved for the
// lastpipe in-process stage (if any), which the caller takes ownership of
// via its own *os.File.
func closeRemainingPipes(pipes [][2]int, reserved *os.File) {
	var reservedFd uintptr
	if reserved != nil {
		reservedFd = reserved.Fd()
	}
	for _, p := range pipes {
		if reserved != nil && uintptr(p[0]) == reservedFd {
			syscall.Close(p[1])
			continue
		}
		syscall.Close(p[0])
		syscall.Close(p[1])
	}
}
