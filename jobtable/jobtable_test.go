package jobtable

import (
	"syscall"
	"testing"

	"github.com/moisam/laylash-engine/cerrors"
)

func newJob(cmd string, pids ...int) *Job {
	return &Job{
		Command:   cmd,
		Pids:      pids,
		ExitCodes: make([]int, len(pids)),
	}
}

func TestAddAssignsAscendingJobNumbers(t *testing.T) {
	tbl := New(0)
	j1 := newJob("sleep 5", 100)
	j2 := newJob("sleep 6", 200)

	n1, err := tbl.Add(j1)
	if err != nil || n1 != 1 {
		t.Fatalf("Add(j1) = (%d, %v), want (1, nil)", n1, err)
	}
	n2, err := tbl.Add(j2)
	if err != nil || n2 != 2 {
		t.Fatalf("Add(j2) = (%d, %v), want (2, nil)", n2, err)
	}
}

func TestAddRejectsTooManyProcesses(t *testing.T) {
	tbl := New(0)
	pids := make([]int, MaxProcessPerJob+1)
	job := newJob("big pipeline", pids...)

	if _, err := tbl.Add(job); !cerrors.Is(err, cerrors.ErrTooManyProcesses) {
		t.Fatalf("Add() = %v, want ErrTooManyProcesses", err)
	}
}

func TestAddRejectsFullTable(t *testing.T) {
	tbl := New(2) // clamped up to DefaultCapacity
	if _, err := tbl.Add(newJob("a", 1)); err != nil {
		t.Fatal(err)
	}
	for pid := 2; pid <= DefaultCapacity; pid++ {
		if _, err := tbl.Add(newJob("b", pid)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := tbl.Add(newJob("c", DefaultCapacity+1)); !cerrors.Is(err, cerrors.ErrJobTableFull) {
		t.Fatalf("Add() on full table = %v, want ErrJobTableFull", err)
	}
}

func TestResolveSpecs(t *testing.T) {
	tbl := New(0)
	j1 := newJob("vim file.txt", 10)
	j2 := newJob("make build", 20)
	tbl.Add(j1)
	tbl.Add(j2)

	if j, err := tbl.Resolve("%%"); err != nil || j.Num != j2.Num {
		t.Errorf("Resolve(%%%%) = (%v, %v), want current job %d", j, err, j2.Num)
	}
	if j, err := tbl.Resolve("%-"); err != nil || j.Num != j1.Num {
		t.Errorf("Resolve(%%-) = (%v, %v), want previous job %d", j, err, j1.Num)
	}
	if j, err := tbl.Resolve("%1"); err != nil || j.Num != j1.Num {
		t.Errorf("Resolve(%%1) = (%v, %v), want job 1", j, err)
	}
	if j, err := tbl.Resolve("%make"); err != nil || j.Num != j2.Num {
		t.Errorf("Resolve(%%make) = (%v, %v), want job 2", j, err)
	}
	if j, err := tbl.Resolve("%?build"); err != nil || j.Num != j2.Num {
		t.Errorf("Resolve(%%?build) = (%v, %v), want job 2", j, err)
	}
	if _, err := tbl.Resolve("%99"); !cerrors.Is(err, cerrors.ErrJobNotFound) {
		t.Errorf("Resolve(%%99) = %v, want ErrJobNotFound", err)
	}
}

func TestResolveAmbiguousPrefix(t *testing.T) {
	tbl := New(0)
	tbl.Add(newJob("make build", 1))
	tbl.Add(newJob("make test", 2))

	if _, err := tbl.Resolve("%make"); !cerrors.Is(err, cerrors.ErrJobAmbiguous) {
		t.Errorf("Resolve(%%make) = %v, want ErrJobAmbiguous", err)
	}
}

func TestUpdateExitAndAggregateStatus(t *testing.T) {
	tbl := New(0)
	job := newJob("/bin/true | /bin/false", 10, 20)
	job.SetFlag(Foreground, true)
	tbl.Add(job)

	tbl.UpdateExit(job, 10, makeExitedStatus(0))
	tbl.UpdateExit(job, 20, makeExitedStatus(1))

	if !job.Complete() {
		t.Fatal("job should be complete after both members exit")
	}
	if got := tbl.AggregateStatus(job, false); got != 1 {
		t.Errorf("AggregateStatus(pipefail=false) = %d, want 1 (last stage)", got)
	}
	if got := tbl.AggregateStatus(job, true); got != 1 {
		t.Errorf("AggregateStatus(pipefail=true) = %d, want 1 (leftmost nonzero)", got)
	}
}

func TestAggregateStatusPipefailLeftmost(t *testing.T) {
	tbl := New(0)
	job := newJob("/bin/false | /bin/true", 10, 20)
	tbl.Add(job)

	tbl.UpdateExit(job, 10, makeExitedStatus(1))
	tbl.UpdateExit(job, 20, makeExitedStatus(0))

	if got := tbl.AggregateStatus(job, true); got != 1 {
		t.Errorf("AggregateStatus(pipefail=true) = %d, want 1 (leftmost nonzero)", got)
	}
	if got := tbl.AggregateStatus(job, false); got != 1 {
		t.Errorf("AggregateStatus(pipefail=false) = %d, want 1 (first member, job not foreground)", got)
	}
}

func TestRemoveReassignsCurrentAndPrevious(t *testing.T) {
	tbl := New(0)
	j1 := newJob("a", 1)
	j2 := newJob("b", 2)
	j3 := newJob("c", 3)
	tbl.Add(j1)
	tbl.Add(j2)
	tbl.Add(j3)

	if tbl.Current() != j3.Num || tbl.Previous() != j2.Num {
		t.Fatalf("after adds: current=%d previous=%d", tbl.Current(), tbl.Previous())
	}

	if err := tbl.Remove(j3.Num); err != nil {
		t.Fatal(err)
	}
	if tbl.Current() != j2.Num {
		t.Errorf("after removing current job: current = %d, want %d", tbl.Current(), j2.Num)
	}
	if tbl.ByJobID(j3.Num) != nil {
		t.Error("removed job should no longer resolve by id")
	}
}

func TestByAnyPid(t *testing.T) {
	tbl := New(0)
	job := newJob("sleep 1 | sleep 2", 10, 20)
	tbl.Add(job)

	if got := tbl.ByAnyPid(20); got == nil || got.Num != job.Num {
		t.Errorf("ByAnyPid(20) = %v, want job %d", got, job.Num)
	}
	if got := tbl.ByAnyPid(999); got != nil {
		t.Errorf("ByAnyPid(999) = %v, want nil", got)
	}
}

// makeExitedStatus builds a syscall.WaitStatus as if from a normal exit, by
// round-tripping through the platform encoding used by WIFEXITED/WEXITSTATUS.
func makeExitedStatus(code int) syscall.WaitStatus {
	return syscall.WaitStatus(code << 8)
}
