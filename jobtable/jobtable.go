// Package jobtable is the sole authority for "what processes does this
// shell own". It tracks every multi-process pipeline the engine has
// started, their exit-status bits, and the current/previous job pointers
// used by bare %+/%- job specs.
//
// Grounded on the teacher's container.go (one mutex-guarded struct exposed
// through thread-safe accessor methods) and on the original jobs.c, whose
// set_cur_job/reset_cur_job current/previous algorithm is ported verbatim
// into reassignCurrent/resetCurrentLocked below.
package jobtable

import (
	"fmt"
	"strings"
	"sync"
	"syscall"

	"github.com/moisam/laylash-engine/cerrors"
)

// MaxProcessPerJob bounds the number of pipeline members a single job may
// hold (spec §5 resource caps).
const MaxProcessPerJob = 32

// DefaultCapacity is the minimum job-table capacity (spec §3, §5).
const DefaultCapacity = 64

// Flags is a bitfield of mutable per-job state.
type Flags uint8

const (
	// Foreground marks a job that currently owns the controlling terminal.
	Foreground Flags = 1 << iota
	// Notified marks a job whose last state change has been reported.
	Notified
	// JobControlled marks a job created while job control (-m) was on.
	JobControlled
	// Disowned marks a job spared from SIGHUP at shell exit.
	Disowned
	// NotifyImmediate requests per-job immediate notification (the notify
	// built-in), rather than waiting for the next prompt.
	NotifyImmediate
)

// SavedTermAttr is an opaque snapshot of terminal attributes, captured when
// a job is suspended while in the foreground and restored when it resumes.
type SavedTermAttr struct {
	Termios syscall.Termios
}

// Job is one pipeline or compound command under job control.
type Job struct {
	Num             int
	Command         string
	Pgid            int
	Pids            []int
	ExitCodes       []int
	ExitBits        uint64
	TerminatedCount int
	Flags           Flags
	LastStatus      int
	SavedAttr       *SavedTermAttr

	stopped bool
}

// HasFlag reports whether all bits in f are set.
func (j *Job) HasFlag(f Flags) bool { return j.Flags&f == f }

// SetFlag sets or clears the bits in f.
func (j *Job) SetFlag(f Flags, on bool) {
	if on {
		j.Flags |= f
	} else {
		j.Flags &^= f
	}
}

// Complete reports whether every member of the job has terminated.
func (j *Job) Complete() bool {
	return j.TerminatedCount == len(j.Pids)
}

// Stopped reports whether the job's last reported status was a stop rather
// than a termination. UpdateExit sets this from WIFSTOPPED, since the
// exit-bitmap alone cannot distinguish "stopped" from "still running".
func (j *Job) Stopped() bool {
	return j.stopped
}

// Table is the bounded job table. Capacity is fixed at construction.
type Table struct {
	mu       sync.Mutex
	slots    []*Job
	capacity int
	current  int
	previous int
}

// New returns an empty table with the given capacity (clamped up to
// DefaultCapacity).
func New(capacity int) *Table {
	if capacity < DefaultCapacity {
		capacity = DefaultCapacity
	}
	return &Table{
		slots:    make([]*Job, 0, capacity),
		capacity: capacity,
	}
}

// Add allocates the lowest free slot for job, assigning it the next job
// number (table's current maximum + 1, never a recycled slot index).
func (t *Table) Add(job *Job) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(job.Pids) > MaxProcessPerJob {
		return 0, cerrors.ErrTooManyProcesses
	}
	if len(t.slots) >= t.capacity {
		return 0, cerrors.ErrJobTableFull
	}

	maxNum := 0
	for _, j := range t.slots {
		if j.Num > maxNum {
			maxNum = j.Num
		}
	}
	job.Num = maxNum + 1
	t.slots = append(t.slots, job)
	t.reassignCurrent(job)
	return job.Num, nil
}

// Remove frees job's slot, shifting later entries down (stable), and
// reassigns current/previous per reassignCurrent's promotion rule.
func (t *Table) Remove(jobNum int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := -1
	for i, j := range t.slots {
		if j.Num == jobNum {
			idx = i
			break
		}
	}
	if idx < 0 {
		return cerrors.ErrJobNotFound
	}

	t.slots = append(t.slots[:idx], t.slots[idx+1:]...)

	if t.current == jobNum {
		t.current = t.previous
		t.previous = 0
	}
	if t.previous == jobNum {
		t.previous = 0
	}
	t.resetCurrentLocked()
	return nil
}

// ByJobID returns the job with the given number, or nil.
func (t *Table) ByJobID(n int) *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byJobIDLocked(n)
}

func (t *Table) byJobIDLocked(n int) *Job {
	if n == 0 {
		return nil
	}
	for _, j := range t.slots {
		if j.Num == n {
			return j
		}
	}
	return nil
}

// ByAnyPid returns the job containing pid as any of its members, or nil.
func (t *Table) ByAnyPid(pid int) *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pid == 0 {
		return nil
	}
	for _, j := range t.slots {
		for _, p := range j.Pids {
			if p == pid {
				return j
			}
		}
	}
	return nil
}

// Resolve parses a POSIX job identifier (%%, %+, %-, %n, %prefix, %?substr)
// and returns the matching job.
func (t *Table) Resolve(spec string) (*Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if spec == "" {
		return nil, cerrors.ErrJobNotFound
	}
	spec = strings.TrimPrefix(spec, "%")

	switch {
	case spec == "" || spec == "%" || spec == "+":
		if t.current == 0 {
			return nil, cerrors.ErrNoCurrentJob
		}
		if j := t.byJobIDLocked(t.current); j != nil {
			return j, nil
		}
		return nil, cerrors.ErrJobNotFound

	case spec == "-":
		if t.previous == 0 {
			return nil, cerrors.ErrNoCurrentJob
		}
		if j := t.byJobIDLocked(t.previous); j != nil {
			return j, nil
		}
		return nil, cerrors.ErrJobNotFound

	case isAllDigits(spec):
		var n int
		fmt.Sscanf(spec, "%d", &n)
		if j := t.byJobIDLocked(n); j != nil {
			return j, nil
		}
		return nil, cerrors.ErrJobNotFound

	case strings.HasPrefix(spec, "?"):
		substr := spec[1:]
		var matches []*Job
		for _, j := range t.slots {
			if strings.Contains(j.Command, substr) {
				matches = append(matches, j)
			}
		}
		if len(matches) == 1 {
			return matches[0], nil
		}
		if len(matches) > 1 {
			return nil, cerrors.ErrJobAmbiguous
		}
		return nil, cerrors.ErrJobNotFound

	default:
		var matches []*Job
		for _, j := range t.slots {
			if strings.HasPrefix(j.Command, spec) {
				matches = append(matches, j)
			}
		}
		if len(matches) == 1 {
			return matches[0], nil
		}
		if len(matches) > 1 {
			return nil, cerrors.ErrJobAmbiguous
		}
		return nil, cerrors.ErrJobNotFound
	}
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// UpdateExit records pid's termination status, setting its bit and
// recomputing TerminatedCount, then reassigns current/previous from the
// job's new state — set_cur_job runs right after collecting a status in
// the original (original_source/src/backend/backend.c), since a stop or
// exit is exactly the kind of status change spec §4.2's "runs on every
// status change" requires. job is complete once every member has
// terminated.
func (t *Table) UpdateExit(job *Job, pid int, rawStatus syscall.WaitStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, p := range job.Pids {
		if p != pid {
			continue
		}
		bit := uint64(1) << uint(i)
		if (rawStatus.Exited() || rawStatus.Signaled()) && job.ExitBits&bit == 0 {
			job.ExitBits |= bit
			job.TerminatedCount++
		}
		job.ExitCodes[i] = exitCodeFromStatus(rawStatus)
		job.stopped = rawStatus.Stopped()
		break
	}
	t.reassignCurrent(job)
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

// AggregateStatus returns the job's overall exit status: under pipefail,
// the leftmost non-zero member status; otherwise the last (rightmost)
// member's status for foreground jobs, or the first member's otherwise.
func (t *Table) AggregateStatus(job *Job, pipefail bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(job.ExitCodes) == 0 {
		return 0
	}
	if pipefail {
		for _, code := range job.ExitCodes {
			if code != 0 {
				return code
			}
		}
		return 0
	}
	if job.HasFlag(Foreground) {
		return job.ExitCodes[len(job.ExitCodes)-1]
	}
	return job.ExitCodes[0]
}

// reassignCurrent implements jobs.c's set_cur_job: promotes job to current
// if it differs, then recomputes previous from the stopped/running state of
// the table. Caller must hold t.mu.
func (t *Table) reassignCurrent(job *Job) {
	if t.current != job.Num {
		t.previous = t.current
		t.current = job.Num
	}

	if t.previous != 0 && t.previous != t.current {
		if prevJob := t.byJobIDLocked(t.previous); prevJob != nil && prevJob.Stopped() {
			return
		}
	}

	cur := t.byJobIDLocked(t.current)
	if cur != nil {
		if cur.Stopped() {
			if j2 := t.lastStoppedBelow(cur.Num); j2 != nil {
				t.previous = j2.Num
				return
			}
		}
		// Most recent running job other than current; when current is
		// stopped, only jobs older than it are considered.
		var j2 *Job
		for _, j := range t.slots {
			if j.Stopped() || j.Num == t.current || (cur.Stopped() && j.Num > t.current) {
				continue
			}
			if j2 == nil || j.Num > j2.Num {
				j2 = j
			}
		}
		if j2 != nil {
			t.previous = j2.Num
			return
		}
	}

	t.previous = t.current
}

// resetCurrentLocked implements jobs.c's reset_cur_job: re-derives current
// and previous from scratch after a removal. Caller must hold t.mu.
func (t *Table) resetCurrentLocked() {
	var chosen int

	if len(t.slots) > 0 && t.current != 0 {
		if j := t.byJobIDLocked(t.current); j != nil && j.Stopped() {
			chosen = t.current
		}
	}
	if chosen == 0 {
		if t.previous != 0 {
			if j := t.byJobIDLocked(t.previous); j != nil && j.Stopped() {
				chosen = t.previous
			}
		}
	}
	if chosen == 0 {
		if j := t.lastStoppedBelow(1<<31 - 1); j != nil {
			chosen = j.Num
		}
	}
	if chosen == 0 {
		if j := t.lastRunningBelow(1<<31 - 1); j != nil {
			chosen = j.Num
		}
	}

	if chosen != 0 {
		if j := t.byJobIDLocked(chosen); j != nil {
			t.reassignCurrent(j)
			return
		}
	}
	t.current = 0
	t.previous = 0
}

// lastStoppedBelow returns the highest-numbered stopped job with
// j.Num < ceiling, mirroring jobs.c's last_stopped_job(older_than) via
// last_job_with_status. Pass 1<<31-1 for "no real ceiling".
func (t *Table) lastStoppedBelow(ceiling int) *Job {
	var best *Job
	for _, j := range t.slots {
		if !j.Stopped() || j.Num >= ceiling {
			continue
		}
		if best == nil || j.Num > best.Num {
			best = j
		}
	}
	return best
}

func (t *Table) lastRunningBelow(ceiling int) *Job {
	var best *Job
	for _, j := range t.slots {
		if j.Stopped() || j.Num >= ceiling {
			continue
		}
		if best == nil || j.Num > best.Num {
			best = j
		}
	}
	return best
}

// Current returns the current job number (0 if none).
func (t *Table) Current() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Previous returns the previous job number (0 if none).
func (t *Table) Previous() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.previous
}

// KillAll signals every job, optionally sparing disowned ones. Used by the
// signal router's SIGHUP handling.
func (t *Table) KillAll(sig syscall.Signal, spareDisowned bool) error {
	t.mu.Lock()
	jobs := make([]*Job, len(t.slots))
	copy(jobs, t.slots)
	t.mu.Unlock()

	var firstErr error
	for _, j := range jobs {
		if spareDisowned && j.HasFlag(Disowned) {
			continue
		}
		if j.Pgid == 0 {
			continue
		}
		if err := syscall.Kill(-j.Pgid, sig); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// All returns a snapshot slice of every job currently in the table, for
// listing built-ins (jobs, jobs -l).
func (t *Table) All() []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Job, len(t.slots))
	copy(out, t.slots)
	return out
}
