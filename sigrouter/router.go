package sigrouter

import (
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/moisam/laylash-engine/ast"
	"github.com/moisam/laylash-engine/cerrors"
	"github.com/moisam/laylash-engine/jobtable"
	"github.com/moisam/laylash-engine/logging"
	"github.com/moisam/laylash-engine/trap"
	"golang.org/x/sys/unix"
)

// deadEntry is one unreconciled (pid, raw status) pair.
type deadEntry struct {
	pid    int
	status syscall.WaitStatus
}

// Router installs signal dispositions per spec §4.1 and converts
// asynchronous delivery into synchronous, job-table-visible state. A
// dedicated goroutine reads os/signal.Notify events; Go gives us no
// async-signal-safe hook point, so everything this goroutine does is kept
// to the bounded, allocation-light subset the original's handler performs:
// a non-blocking wait4 loop and a ring append.
type Router struct {
	jobs    *jobtable.Table
	traps   *trap.Queue
	symtab  ast.SymbolTable
	jobCtrl bool

	mu           sync.Mutex
	ring         []deadEntry
	ringCap      int
	ringCond     *sync.Cond // broadcasts on every ring deposit, woken by Reap
	sigReceived  syscall.Signal
	breakRequest bool
	stopCh       chan struct{}
	foregroundMu sync.Mutex // serializes access during WaitForeground
}

// New returns a Router watching the given job table for SIGCHLD reaping
// and posting to traps for every other trapped signal. ringCap is clamped
// up to the spec's minimum of 32.
func New(jobs *jobtable.Table, traps *trap.Queue, symtab ast.SymbolTable, jobControl bool, ringCap int) *Router {
	if ringCap < 32 {
		ringCap = 32
	}
	r := &Router{
		jobs:    jobs,
		traps:   traps,
		symtab:  symtab,
		jobCtrl: jobControl,
		ringCap: ringCap,
		stopCh:  make(chan struct{}),
	}
	r.ringCond = sync.NewCond(&r.mu)
	return r
}

// Start installs the signal dispositions of spec §4.1 and launches the
// router goroutine. interactive selects the interactive-vs-non-interactive
// column of the dispositions table.
func (r *Router) Start(interactive bool) {
	watched := []os.Signal{
		syscall.SIGCHLD,
		syscall.SIGINT,
		syscall.SIGHUP,
		syscall.SIGWINCH,
		syscall.SIGQUIT,
		syscall.SIGTERM,
		syscall.SIGALRM,
	}
	if r.jobCtrl {
		watched = append(watched, syscall.SIGTSTP, syscall.SIGTTIN, syscall.SIGTTOU)
	}

	ch := make(chan os.Signal, 64)
	signal.Notify(ch, watched...)

	go r.loop(ch, interactive)
}

// Stop halts the router goroutine and stops receiving signals.
func (r *Router) Stop() {
	close(r.stopCh)
}

func (r *Router) loop(ch chan os.Signal, interactive bool) {
	for {
		select {
		case <-r.stopCh:
			signal.Stop(ch)
			return
		case sig := <-ch:
			r.handle(sig.(syscall.Signal), interactive)
		}
	}
}

func (r *Router) handle(sig syscall.Signal, interactive bool) {
	switch sig {
	case syscall.SIGCHLD:
		r.Reap()

	case syscall.SIGINT:
		if interactive {
			r.mu.Lock()
			r.sigReceived = syscall.SIGINT
			r.breakRequest = true
			r.mu.Unlock()
		}
		r.traps.Post(trap.SignalEvent(syscall.SIGINT))

	case syscall.SIGHUP:
		if interactive {
			_ = r.jobs.KillAll(syscall.SIGHUP, true)
			os.Exit(128 + int(syscall.SIGHUP))
		}
		r.traps.Post(trap.SignalEvent(syscall.SIGHUP))

	case syscall.SIGWINCH:
		if interactive && r.symtab != nil {
			r.refreshWinsize()
		}

	case syscall.SIGALRM:
		r.traps.Post(trap.SignalEvent(syscall.SIGALRM))

	default:
		r.traps.Post(trap.SignalEvent(sig))
	}
}

func (r *Router) refreshWinsize() {
	ws, err := unix.IoctlGetWinsize(int(os.Stdin.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return
	}
	_ = r.symtab.Set("LINES", strconv.Itoa(int(ws.Row)))
	_ = r.symtab.Set("COLUMNS", strconv.Itoa(int(ws.Col)))
}

// Reap runs the non-blocking wait4(-1, WNOHANG) loop, recording every
// collected pid's status into the job table (if known) AND the
// dead-process ring. Depositing into the ring unconditionally — not only
// for unknown pids — is what lets WaitForeground win its race against
// this goroutine: whichever of the two collects a status first, the other
// still finds it, in the job table or the ring respectively. With job
// control on, it posts the CHLD trap when a background job's last member
// terminates.
func (r *Router) Reap() {
	for {
		var ws syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &ws, syscall.WNOHANG|syscall.WUNTRACED|syscall.WCONTINUED, nil)
		if err != nil || pid <= 0 {
			return
		}

		if job := r.jobs.ByAnyPid(pid); job != nil {
			r.jobs.UpdateExit(job, pid, ws)
			job.SetFlag(jobtable.Notified, false)
			logging.Default().Debug("reaped job member", "pid", pid, "job", job.Num)
			if r.jobCtrl && (ws.Exited() || ws.Signaled()) && job.Complete() && !job.HasFlag(jobtable.Foreground) {
				r.traps.Post(trap.EventChld)
			}
		}

		r.depositRing(pid, ws)
	}
}

func (r *Router) depositRing(pid int, ws syscall.WaitStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.ring {
		if r.ring[i].pid == pid {
			r.ring[i].status = ws
			r.ringCond.Broadcast()
			return
		}
	}
	if len(r.ring) >= r.ringCap {
		r.ring = r.ring[1:]
	}
	r.ring = append(r.ring, deadEntry{pid: pid, status: ws})
	r.ringCond.Broadcast()
}

// takeFromRing removes and returns pid's entry from the ring, if present.
func (r *Router) takeFromRing(pid int) (syscall.WaitStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.ring {
		if r.ring[i].pid == pid {
			ws := r.ring[i].status
			r.ring = append(r.ring[:i], r.ring[i+1:]...)
			return ws, true
		}
	}
	return 0, false
}

// WaitForeground blocks until pid exits or is reported stopped, consulting
// the ring first, then falling back to a blocking wait4 on pid directly.
// Returns status 128 immediately, without further blocking, if SIGINT was
// received meanwhile (spec §4.1, §5 Cancellation).
//
// Reap() runs concurrently off SIGCHLD and may collect pid with its own
// wait4(-1, WNOHANG) before this call's own wait4(pid, WUNTRACED) gets to run; the
// kernel then reports ECHILD for a child that in fact exited cleanly.
// Rather than surface that race as a hard error, a wait4 call that comes
// back ECHILD falls through to waitRing, which blocks on the ring's
// condition variable until Reap()'s concurrent deposit lands.
func (r *Router) WaitForeground(pid int) (int, error) {
	r.foregroundMu.Lock()
	defer r.foregroundMu.Unlock()

	if ws, ok := r.takeFromRing(pid); ok {
		return exitCodeFromStatus(ws), nil
	}

	for {
		if r.consumeSigint() {
			return 128, cerrors.ErrInterrupted
		}

		var ws syscall.WaitStatus
		got, err := syscall.Wait4(pid, &ws, syscall.WUNTRACED, nil)
		switch {
		case err == syscall.EINTR:
			continue
		case err == syscall.ECHILD:
			ws, ok := r.waitRing(pid)
			if !ok {
				return 0, cerrors.Wrap(err, cerrors.ErrInternal, "wait4: pid reaped by no one")
			}
			return exitCodeFromStatus(ws), nil
		case err != nil:
			return 0, cerrors.Wrap(err, cerrors.ErrInternal, "wait4")
		case got == pid:
			return exitCodeFromStatus(ws), nil
		}
	}
}

// waitRing blocks on the ring's condition variable until pid's status is
// deposited by a concurrent Reap(), used when this goroutine's own wait4
// lost the SIGCHLD race. Reap() never blocks (WNOHANG), so this returns as
// soon as the scheduler lets that goroutine run.
func (r *Router) waitRing(pid int) (syscall.WaitStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		for i := range r.ring {
			if r.ring[i].pid == pid {
				ws := r.ring[i].status
				r.ring = append(r.ring[:i], r.ring[i+1:]...)
				return ws, true
			}
		}
		r.ringCond.Wait()
	}
}

func (r *Router) consumeSigint() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sigReceived == syscall.SIGINT {
		r.sigReceived = 0
		return true
	}
	return false
}

// BreakRequested reports and clears the loop-break flag SIGINT sets in an
// interactive shell (spec §4.1's "requests loop break").
func (r *Router) BreakRequested() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	requested := r.breakRequest
	r.breakRequest = false
	return requested
}

func exitCodeFromStatus(ws syscall.WaitStatus) int {
	switch {
	case ws.Exited():
		return ws.ExitStatus()
	case ws.Signaled():
		return 128 + int(ws.Signal())
	default:
		return 0
	}
}
