// Package trap implements deferred execution of shell-code handlers at
// safe points, per spec §4.8.
//
// Grounded structurally on the teacher's hooks.go: a typed event maps to a
// registered action, run through a subprocess-shaped callback. Hooks run
// shell commands at container lifecycle points; traps run shell-code
// strings at signal/pseudo-event points — the same "typed event, ordered
// action, deferred run" shape, generalized from the container's fixed
// six-stage lifecycle to the engine's thirty-six-odd signal and
// pseudo-event slots.
package trap

import (
	"fmt"
	"sort"
	"sync"
	"syscall"
)

// EventKind identifies a trap slot: every real signal (1..31), plus the
// pseudo-events EXIT, ERR, DEBUG, RETURN, CHLD. The signal router posts
// real signals and CHLD; nothing in this repository posts EXIT, ERR, DEBUG
// or RETURN, so traps set on those are stored but never run.
type EventKind int

const (
	// EventExit fires exactly once at shell (or subshell) exit.
	EventExit EventKind = -(iota + 1)
	// EventErr fires when a simple command's status is non-zero outside a
	// context that already handles it.
	EventErr
	// EventDebug fires before each simple command and loop iteration.
	EventDebug
	// EventReturn fires when a function or dot-script returns.
	EventReturn
	// EventChld fires when a background job's final member terminates
	// under job control.
	EventChld
)

// SignalEvent returns the EventKind for real signal number n.
func SignalEvent(n syscall.Signal) EventKind { return EventKind(n) }

// String names the event for trap -p listing and diagnostics.
func (e EventKind) String() string {
	switch e {
	case EventExit:
		return "EXIT"
	case EventErr:
		return "ERR"
	case EventDebug:
		return "DEBUG"
	case EventReturn:
		return "RETURN"
	case EventChld:
		return "CHLD"
	default:
		if e > 0 {
			return syscall.Signal(e).String()
		}
		return "UNKNOWN"
	}
}

// Disposition is what happens when an event's trap fires.
type Disposition struct {
	// Unset means no trap is registered: the default OS/shell behaviour
	// applies.
	Unset bool
	// Ignored means the event is suppressed with no action run.
	Ignored bool
	// ScriptBody, when non-empty and neither Unset nor Ignored, is the
	// shell-code string to run.
	ScriptBody string
}

// IsUnset reports whether d represents "no trap registered".
func (d Disposition) IsUnset() bool { return d.Unset }

// Table is the trap table: per-event disposition. A subshell context made
// by EngineContext.Fork shares its parent's Table unchanged: ResetTraceable
// clears DEBUG/RETURN/ERR, but nothing in this repository calls it on
// subshell entry. This package only stores and runs dispositions.
type Table struct {
	mu    sync.Mutex
	slots map[EventKind]Disposition
}

// NewTable returns an empty trap table (every event Unset).
func NewTable() *Table {
	return &Table{slots: make(map[EventKind]Disposition)}
}

// Get returns event's current disposition.
func (t *Table) Get(event EventKind) Disposition {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.slots[event]
	if !ok {
		return Disposition{Unset: true}
	}
	return d
}

// Set registers d for event.
func (t *Table) Set(event EventKind, d Disposition) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.slots[event] = d
}

// Unset clears event back to Unset.
func (t *Table) Unset(event EventKind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.slots, event)
}

// Save returns a deep copy of the table's current dispositions, for `trap
// -p` and for a later Restore.
func (t *Table) Save() map[EventKind]Disposition {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[EventKind]Disposition, len(t.slots))
	for k, v := range t.slots {
		out[k] = v
	}
	return out
}

// Restore replaces the table's dispositions with a previously Saved set.
func (t *Table) Restore(saved map[EventKind]Disposition) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.slots = make(map[EventKind]Disposition, len(saved))
	for k, v := range saved {
		t.slots[k] = v
	}
}

// ResetTraceable clears DEBUG/RETURN/ERR unless keep is true for that
// event, per §4.6a subshell initialisation.
func (t *Table) ResetTraceable(keepDebug, keepReturn, keepErr bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !keepDebug {
		delete(t.slots, EventDebug)
	}
	if !keepReturn {
		delete(t.slots, EventReturn)
	}
	if !keepErr {
		delete(t.slots, EventErr)
	}
}

// Runner executes a trap's ScriptBody. The engine never interprets shell
// code itself; this is the callback into the interpreter's
// command-execution entry point, analogous to hooks.go invoking an
// external hook process — here the "subprocess" is the embedding
// interpreter's own evaluator.
type Runner interface {
	Run(scriptBody string) error
}

// pending is one queued trap firing, in delivery order.
type pending struct {
	event EventKind
}

// Queue is the append-only-from-router, drain-only-from-driver trap
// event queue described in spec §4.8 / Design Notes "Trap deferral".
type Queue struct {
	mu         sync.Mutex
	items      []pending
	inProgress map[EventKind]bool
}

// NewQueue returns an empty trap queue.
func NewQueue() *Queue {
	return &Queue{inProgress: make(map[EventKind]bool)}
}

// Post appends event to the queue. Called from the signal router; safe to
// call repeatedly for the same event before it drains: a Post of an event
// that is already queued is dropped, so repeated deliveries coalesce into
// one run per drain.
func (q *Queue) Post(event EventKind) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, p := range q.items {
		if p.event == event {
			return
		}
	}
	q.items = append(q.items, pending{event: event})
}

// DrainPending runs every queued trap in ascending signal-number order
// (spec §4.8), skipping (and re-queuing) any event whose trap body is
// already running — recursion is not permitted; a trap body executing the
// same trap masks that trap's delivery for the body's duration.
func (q *Queue) DrainPending(table *Table, runner Runner) error {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()

	sort.Slice(items, func(i, j int) bool { return items[i].event < items[j].event })

	var firstErr error
	for _, p := range items {
		if err := q.fire(p.event, table, runner); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (q *Queue) fire(event EventKind, table *Table, runner Runner) error {
	q.mu.Lock()
	if q.inProgress[event] {
		q.items = append(q.items, pending{event: event})
		q.mu.Unlock()
		return nil
	}
	q.inProgress[event] = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		delete(q.inProgress, event)
		q.mu.Unlock()
	}()

	d := table.Get(event)
	if d.Unset || d.Ignored || d.ScriptBody == "" {
		return nil
	}
	if err := runner.Run(d.ScriptBody); err != nil {
		return fmt.Errorf("trap %s: %w", event, err)
	}
	return nil
}

// Pending reports whether any trap events are currently queued, without
// draining them.
func (q *Queue) Pending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) > 0
}
