package enginectl

import (
	"syscall"
	"testing"

	"github.com/moisam/laylash-engine/ast"
	"github.com/moisam/laylash-engine/config"
	"github.com/moisam/laylash-engine/shellctx"
	"github.com/moisam/laylash-engine/trap"
)

// fakeNode is a minimal ast.Node for driver tests; it never needs real
// argv/value expansion since the stub runners below ignore node content.
type fakeNode struct {
	kind     ast.NodeKind
	value    string
	args     []string
	children []ast.Node
	line     int
}

func (n *fakeNode) Kind() ast.NodeKind  { return n.kind }
func (n *fakeNode) Value() string       { return n.value }
func (n *fakeNode) Args() []string      { return n.args }
func (n *fakeNode) Children() []ast.Node { return n.children }
func (n *fakeNode) Line() int           { return n.line }

func simple(name string) ast.Node {
	return &fakeNode{kind: ast.NodeKind(99), value: name}
}

// stubRunners drives every simple command to a fixed status keyed by its
// Value(), and every pipeline node to a fixed status too.
type stubRunners struct {
	statuses map[string]int
}

func (s *stubRunners) RunSimple(node ast.Node, ctx *shellctx.EngineContext) (int, error) {
	return s.statuses[node.Value()], nil
}

func (s *stubRunners) RunPipeline(node ast.Node, ctx *shellctx.EngineContext, background bool) (int, error) {
	return s.statuses[node.Value()], nil
}

func newTestDriver(statuses map[string]int) (*Driver, *shellctx.EngineContext) {
	stub := &stubRunners{statuses: statuses}
	d := &Driver{Pipelines: stub, Simple: stub}
	ctx := shellctx.New(nil, nil, nil, nil, nil, config.Default())
	return d, ctx
}

func TestDriveListRunsAllChildren(t *testing.T) {
	d, ctx := newTestDriver(map[string]int{"a": 0, "b": 0, "c": 7})
	list := &fakeNode{kind: ast.KindList, children: []ast.Node{simple("a"), simple("b"), simple("c")}}

	out := d.Drive(list, ctx)
	if out.Kind != Normal || out.ExitStatus != 7 {
		t.Errorf("got %+v, want Normal/7", out)
	}
}

func TestDriveAndOrShortCircuitsOnFailure(t *testing.T) {
	d, ctx := newTestDriver(map[string]int{"a": 1, "b": 0})
	// a && b -- a fails, b must not run (its status would otherwise show).
	andOr := &fakeNode{kind: ast.KindAndOr, children: []ast.Node{
		simple("a"),
		&fakeNode{kind: ast.NodeKind(99), value: "b &&"}, // connector carried on the next child's Value per driver contract
	}}
	// The driver reads the connector off children[i+1].Value(), so build
	// the pair the way driveAndOr expects: first child has no connector,
	// second child's Value() IS the connector text used for short-circuit
	// decisions while its own command name is unused by this stub.
	andOr.children[1] = &fakeNode{kind: ast.NodeKind(99), value: "&&"}

	out := d.Drive(andOr, ctx)
	if out.ExitStatus != 1 {
		t.Errorf("ExitStatus = %d, want 1 (short-circuited on &&)", out.ExitStatus)
	}
}

func TestDriveIfTakesThenBranch(t *testing.T) {
	d, ctx := newTestDriver(map[string]int{"cond": 0, "then": 3, "else": 9})
	ifNode := &fakeNode{kind: ast.KindIf, children: []ast.Node{simple("cond"), simple("then"), simple("else")}}

	out := d.Drive(ifNode, ctx)
	if out.ExitStatus != 3 {
		t.Errorf("ExitStatus = %d, want 3 (then branch)", out.ExitStatus)
	}
}

func TestDriveIfTakesElseBranch(t *testing.T) {
	d, ctx := newTestDriver(map[string]int{"cond": 1, "then": 3, "else": 9})
	ifNode := &fakeNode{kind: ast.KindIf, children: []ast.Node{simple("cond"), simple("then"), simple("else")}}

	out := d.Drive(ifNode, ctx)
	if out.ExitStatus != 9 {
		t.Errorf("ExitStatus = %d, want 9 (else branch)", out.ExitStatus)
	}
}

func TestDriveSimpleErrexitTriggersExit(t *testing.T) {
	d, ctx := newTestDriver(map[string]int{"fails": 1})
	ctx.Config.Set(config.OptErrexit, true)

	out := d.Drive(simple("fails"), ctx)
	if out.Kind != Exit {
		t.Errorf("Kind = %v, want Exit under errexit", out.Kind)
	}
	if out.ExitStatus != 1 {
		t.Errorf("ExitStatus = %d, want 1", out.ExitStatus)
	}
}

func TestDriveSubshellIsolatesExitStatusButReports(t *testing.T) {
	d, ctx := newTestDriver(map[string]int{"inner": 5})
	ctx.SetExitStatus(0)
	sub := &fakeNode{kind: ast.KindSubshell, children: []ast.Node{simple("inner")}}

	out := d.Drive(sub, ctx)
	if out.ExitStatus != 5 {
		t.Errorf("ExitStatus = %d, want 5", out.ExitStatus)
	}
	if ctx.SubshellDepth() != 0 {
		t.Error("parent context's subshell depth must not change")
	}
}

// statusNode is a fakeNode whose exit status comes from a closure instead
// of a fixed map lookup, so a test can change what it reports across
// repeated re-drives of the same node (the shape a real while/until
// condition is re-evaluated in).
type statusNode struct {
	fakeNode
	status func() int
}

type dynamicRunner struct{}

func (dynamicRunner) RunSimple(node ast.Node, ctx *shellctx.EngineContext) (int, error) {
	if sn, ok := node.(*statusNode); ok {
		return sn.status(), nil
	}
	return 0, nil
}

func (dynamicRunner) RunPipeline(node ast.Node, ctx *shellctx.EngineContext, background bool) (int, error) {
	return dynamicRunner{}.RunSimple(node, ctx)
}

func TestDriveLoopWhileReDrivesConditionAndRunsBody(t *testing.T) {
	iterations := 0
	cond := &statusNode{status: func() int {
		if iterations >= 3 {
			return 1
		}
		iterations++
		return 0
	}}
	bodyRuns := 0
	body := &statusNode{status: func() int {
		bodyRuns++
		return 0
	}}
	loop := &fakeNode{kind: ast.KindWhile, children: []ast.Node{cond, body}}

	d := &Driver{Pipelines: dynamicRunner{}, Simple: dynamicRunner{}}
	ctx := shellctx.New(nil, nil, nil, nil, nil, config.Default())

	out := d.Drive(loop, ctx)
	if out.Kind != Normal {
		t.Fatalf("Kind = %v, want Normal", out.Kind)
	}
	if iterations != 3 || bodyRuns != 3 {
		t.Errorf("iterations=%d bodyRuns=%d, want 3/3", iterations, bodyRuns)
	}
}

func TestDriveLoopUntilStopsOnZeroStatus(t *testing.T) {
	checks := 0
	cond := &statusNode{status: func() int {
		checks++
		if checks >= 2 {
			return 0
		}
		return 1
	}}
	bodyRuns := 0
	body := &statusNode{status: func() int {
		bodyRuns++
		return 0
	}}
	loop := &fakeNode{kind: ast.KindUntil, children: []ast.Node{cond, body}}

	d := &Driver{Pipelines: dynamicRunner{}, Simple: dynamicRunner{}}
	ctx := shellctx.New(nil, nil, nil, nil, nil, config.Default())

	out := d.Drive(loop, ctx)
	if out.Kind != Normal {
		t.Fatalf("Kind = %v, want Normal", out.Kind)
	}
	if bodyRuns != 1 {
		t.Errorf("bodyRuns = %d, want 1 (until stops once condition reports zero)", bodyRuns)
	}
}

// recordingTrapRunner satisfies trap.Runner by appending each fired script
// body, so a test can assert a trap actually ran instead of just that it
// was queued.
type recordingTrapRunner struct {
	ran []string
}

func (r *recordingTrapRunner) Run(scriptBody string) error {
	r.ran = append(r.ran, scriptBody)
	return nil
}

func TestDriveSimpleDrainsPendingTrapsAfterCommand(t *testing.T) {
	table := trap.NewTable()
	table.Set(trap.SignalEvent(syscall.SIGUSR1), trap.Disposition{ScriptBody: "echo hi"})
	queue := trap.NewQueue()
	queue.Post(trap.SignalEvent(syscall.SIGUSR1))

	runner := &recordingTrapRunner{}
	d, ctx := newTestDriver(map[string]int{"cmd": 0})
	d.TrapRunner = runner
	ctx.Traps = table
	ctx.TrapQ = queue

	d.Drive(simple("cmd"), ctx)

	if len(runner.ran) != 1 || runner.ran[0] != "echo hi" {
		t.Errorf("ran = %v, want one run of %q", runner.ran, "echo hi")
	}
}

func TestOutcomeLoopUnwindsOneLevel(t *testing.T) {
	out := Outcome{Kind: Break, Levels: 2, ExitStatus: 0}
	next := out.Loop()
	if next.Kind != Break || next.Levels != 1 {
		t.Errorf("Loop() = %+v, want Break/Levels=1", next)
	}
	final := next.Loop()
	if final.Kind != Normal {
		t.Errorf("Loop() = %+v, want Normal after full unwind", final)
	}
}
