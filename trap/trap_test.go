package trap

import (
	"errors"
	"syscall"
	"testing"
)

type recordingRunner struct {
	ran []string
	err error
}

func (r *recordingRunner) Run(body string) error {
	r.ran = append(r.ran, body)
	return r.err
}

func TestSetGetUnset(t *testing.T) {
	tbl := NewTable()
	if !tbl.Get(EventExit).IsUnset() {
		t.Fatal("fresh table should report EventExit as unset")
	}

	tbl.Set(EventExit, Disposition{ScriptBody: "echo bye"})
	d := tbl.Get(EventExit)
	if d.IsUnset() || d.ScriptBody != "echo bye" {
		t.Fatalf("Get(EventExit) = %+v, want ScriptBody 'echo bye'", d)
	}

	tbl.Unset(EventExit)
	if !tbl.Get(EventExit).IsUnset() {
		t.Fatal("Unset should clear the disposition")
	}
}

func TestSaveRestoreRoundTrip(t *testing.T) {
	tbl := NewTable()
	tbl.Set(EventExit, Disposition{ScriptBody: "cleanup"})
	tbl.Set(SignalEvent(syscall.SIGUSR1), Disposition{ScriptBody: "echo hi"})

	saved := tbl.Save()

	tbl2 := NewTable()
	tbl2.Restore(saved)

	if got := tbl2.Get(EventExit); got.ScriptBody != "cleanup" {
		t.Errorf("restored EventExit = %+v", got)
	}
	if got := tbl2.Get(SignalEvent(syscall.SIGUSR1)); got.ScriptBody != "echo hi" {
		t.Errorf("restored SIGUSR1 = %+v", got)
	}
}

func TestResetTraceable(t *testing.T) {
	tbl := NewTable()
	tbl.Set(EventDebug, Disposition{ScriptBody: "d"})
	tbl.Set(EventReturn, Disposition{ScriptBody: "r"})
	tbl.Set(EventErr, Disposition{ScriptBody: "e"})

	tbl.ResetTraceable(true, false, false)

	if tbl.Get(EventDebug).IsUnset() {
		t.Error("keepDebug=true should preserve DEBUG")
	}
	if !tbl.Get(EventReturn).IsUnset() {
		t.Error("keepReturn=false should clear RETURN")
	}
	if !tbl.Get(EventErr).IsUnset() {
		t.Error("keepErr=false should clear ERR")
	}
}

func TestDrainPendingRunsInAscendingOrder(t *testing.T) {
	tbl := NewTable()
	tbl.Set(SignalEvent(syscall.SIGUSR2), Disposition{ScriptBody: "second"})
	tbl.Set(SignalEvent(syscall.SIGUSR1), Disposition{ScriptBody: "first"})

	q := NewQueue()
	q.Post(SignalEvent(syscall.SIGUSR2))
	q.Post(SignalEvent(syscall.SIGUSR1))

	runner := &recordingRunner{}
	if err := q.DrainPending(tbl, runner); err != nil {
		t.Fatal(err)
	}

	if len(runner.ran) != 2 || runner.ran[0] != "first" || runner.ran[1] != "second" {
		t.Errorf("ran = %v, want [first second] (ascending signal number)", runner.ran)
	}
}

func TestDrainPendingSkipsUnsetAndIgnored(t *testing.T) {
	tbl := NewTable()
	tbl.Set(SignalEvent(syscall.SIGTERM), Disposition{Ignored: true})

	q := NewQueue()
	q.Post(SignalEvent(syscall.SIGTERM))
	q.Post(SignalEvent(syscall.SIGINT)) // never registered: Unset

	runner := &recordingRunner{}
	if err := q.DrainPending(tbl, runner); err != nil {
		t.Fatal(err)
	}
	if len(runner.ran) != 0 {
		t.Errorf("ran = %v, want none (ignored/unset events run nothing)", runner.ran)
	}
}

func TestDrainPendingPropagatesRunnerError(t *testing.T) {
	tbl := NewTable()
	tbl.Set(EventErr, Disposition{ScriptBody: "boom"})

	q := NewQueue()
	q.Post(EventErr)

	runner := &recordingRunner{err: errors.New("boom failed")}
	if err := q.DrainPending(tbl, runner); err == nil {
		t.Fatal("expected DrainPending to propagate the runner's error")
	}
}

func TestPendingReflectsQueueState(t *testing.T) {
	q := NewQueue()
	if q.Pending() {
		t.Fatal("fresh queue should not report pending")
	}
	q.Post(EventExit)
	if !q.Pending() {
		t.Fatal("queue with a posted event should report pending")
	}
}
