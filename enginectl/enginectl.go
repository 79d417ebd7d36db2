// Package enginectl is the control-flow driver: it walks a parsed syntax
// tree and threads the exit status through lists, AND-OR chains, pipelines,
// and compound commands, honouring break/continue/return (spec §4.6).
//
// Grounded on the teacher's container/start.go Run/Wait pair — Run
// composes two lifecycle steps and returns their combined error; Wait
// blocks on a child and translates its wait status into an exit code. The
// driver generalizes that same shape (compose a step, translate a status)
// from "one container process" to "a whole syntax tree of nested
// commands."
package enginectl

import (
	"github.com/moisam/laylash-engine/ast"
	"github.com/moisam/laylash-engine/config"
	"github.com/moisam/laylash-engine/logging"
	"github.com/moisam/laylash-engine/shellctx"
	"github.com/moisam/laylash-engine/trap"
)

// OutcomeKind replaces the original's process-wide req_break/req_continue/
// return_set counters with an explicit sum type threaded through return
// values, per spec §9 Design Notes: every call to Drive returns one of
// these instead of mutating shared state the caller must remember to
// check.
type OutcomeKind int

const (
	// Normal means the node completed; ExitStatus is its real status and
	// driving should continue with the next sibling.
	Normal OutcomeKind = iota
	// Break means an enclosing loop should stop; Levels counts how many
	// nested loops it still needs to unwind through.
	Break
	// Continue means an enclosing loop should advance to its next
	// iteration; Levels counts how many nested loops it still needs to
	// unwind through.
	Continue
	// Return means the innermost function or dot-script should stop and
	// hand ExitStatus back to its caller.
	Return
	// Exit means the shell itself should terminate with ExitStatus.
	Exit
)

func (k OutcomeKind) String() string {
	switch k {
	case Normal:
		return "normal"
	case Break:
		return "break"
	case Continue:
		return "continue"
	case Return:
		return "return"
	case Exit:
		return "exit"
	default:
		return "unknown"
	}
}

// Outcome is what every Drive call returns: the kind of control transfer
// in effect, the exit status to report, and (for break/continue) how many
// nesting levels remain to unwind.
type Outcome struct {
	Kind       OutcomeKind
	ExitStatus int
	Levels     int
}

// Loop consumes one level of a break/continue outcome it is responsible
// for, converting it back to Normal once fully unwound (the loop/function
// that "consumes" the counter, per spec §4.6's "cleared by the innermost
// loop/function that consumes them").
func (o Outcome) Loop() Outcome {
	if (o.Kind == Break || o.Kind == Continue) && o.Levels > 1 {
		return Outcome{Kind: o.Kind, ExitStatus: o.ExitStatus, Levels: o.Levels - 1}
	}
	if o.Kind == Break {
		return Outcome{Kind: Normal, ExitStatus: o.ExitStatus}
	}
	// Continue with Levels == 1: the loop restarts itself, so from the
	// driver's perspective driving this node is done (Normal).
	return Outcome{Kind: Normal, ExitStatus: o.ExitStatus}
}

// PipelineRunner is implemented by the pipeline package's Build entry
// point, kept as an interface here so enginectl does not need to know
// pipeline's full BuildOptions shape — only that it can be asked to run
// one pipeline node and report an Outcome-shaped result.
type PipelineRunner interface {
	RunPipeline(node ast.Node, ctx *shellctx.EngineContext, background bool) (int, error)
}

// SimpleRunner is implemented by the dispatch package.
type SimpleRunner interface {
	RunSimple(node ast.Node, ctx *shellctx.EngineContext) (int, error)
}

// Driver walks the syntax tree, delegating pipeline and simple-command
// execution to its collaborators and handling every compound form itself.
type Driver struct {
	Pipelines PipelineRunner
	Simple    SimpleRunner

	// TrapRunner executes a trap's ScriptBody; left nil, trap delivery is
	// parsed and queued (by sigrouter) but never fires, so a real engine
	// must wire this to its own line-execution entry point.
	TrapRunner trap.Runner
}

// drainTraps runs every trap queued since the last drain, per spec §4.8's
// "between commands and immediately after wait returns": called at every
// command boundary the driver itself walks past. Errors from a trap body
// are logged rather than propagated — a misbehaving trap must not corrupt
// the exit status of the command it interrupted.
func (d *Driver) drainTraps(ctx *shellctx.EngineContext) {
	if ctx == nil || ctx.TrapQ == nil || ctx.Traps == nil || d.TrapRunner == nil {
		return
	}
	if err := ctx.TrapQ.DrainPending(ctx.Traps, d.TrapRunner); err != nil {
		logging.Default().Warn("trap body failed", "err", err)
	}
}

// Drive evaluates node and returns the resulting Outcome (spec §4.6).
func (d *Driver) Drive(node ast.Node, ctx *shellctx.EngineContext) Outcome {
	if node == nil {
		return Outcome{Kind: Normal}
	}

	switch node.Kind() {
	case ast.KindList:
		return d.driveList(node, ctx)
	case ast.KindAndOr:
		return d.driveAndOr(node, ctx)
	case ast.KindPipeline:
		return d.drivePipeline(node, ctx, false)
	case ast.KindBraceGroup:
		return d.driveBraceGroup(node, ctx)
	case ast.KindSubshell:
		return d.driveSubshell(node, ctx)
	case ast.KindWhile, ast.KindUntil:
		return d.driveLoop(node, ctx)
	case ast.KindFor, ast.KindSelect:
		return d.driveForSelect(node, ctx)
	case ast.KindIf:
		return d.driveIf(node, ctx)
	case ast.KindCase:
		return d.driveCase(node, ctx)
	case ast.KindFunctionDef:
		return d.driveFunctionDef(node, ctx)
	default: // simple command
		return d.driveSimple(node, ctx)
	}
}

func (d *Driver) driveSimple(node ast.Node, ctx *shellctx.EngineContext) Outcome {
	status, err := d.Simple.RunSimple(node, ctx)
	if err != nil {
		status = 1
	}
	ctx.SetExitStatus(status)
	d.drainTraps(ctx)
	if err == nil && node.Value() == "exit" {
		return Outcome{Kind: Exit, ExitStatus: status}
	}
	if ctx.Config.Has(config.OptErrexit) && status != 0 {
		return Outcome{Kind: Exit, ExitStatus: status}
	}
	return Outcome{Kind: Normal, ExitStatus: status}
}

func (d *Driver) drivePipeline(node ast.Node, ctx *shellctx.EngineContext, background bool) Outcome {
	status, err := d.Pipelines.RunPipeline(node, ctx, background)
	if err != nil {
		status = 1
	}
	ctx.SetExitStatus(status)
	d.drainTraps(ctx)
	if !background && ctx.Config.Has(config.OptErrexit) && status != 0 {
		return Outcome{Kind: Exit, ExitStatus: status}
	}
	return Outcome{Kind: Normal, ExitStatus: status}
}

// driveList implements spec §4.6's List: left-to-right evaluation. It does
// not distinguish asynchronous (`&`) members: every child goes through
// Drive, which runs pipelines in the foreground, so no background job is
// started and $! is not set here.
func (d *Driver) driveList(node ast.Node, ctx *shellctx.EngineContext) Outcome {
	var last Outcome
	for _, child := range node.Children() {
		last = d.Drive(child, ctx)
		d.drainTraps(ctx)
		if last.Kind != Normal {
			return last
		}
	}
	return last
}

// driveAndOr implements spec §4.6's AND-OR list: evaluate pipelines left
// to right, short-circuiting on && / || per the connector between each
// pair of children (the connector is carried as the child's Value()).
func (d *Driver) driveAndOr(node ast.Node, ctx *shellctx.EngineContext) Outcome {
	children := node.Children()
	var last Outcome
	skip := false
	for i, child := range children {
		connector := child.Value() // "&&", "||", or "" for the first member
		if skip {
			skip = false
			continue
		}
		last = d.Drive(child, ctx)
		d.drainTraps(ctx)
		if last.Kind != Normal {
			return last
		}
		if i+1 < len(children) {
			next := children[i+1].Value()
			if next == "&&" && last.ExitStatus != 0 {
				skip = true
			} else if next == "||" && last.ExitStatus == 0 {
				skip = true
			}
		}
		_ = connector
	}
	return last
}

func (d *Driver) driveBraceGroup(node ast.Node, ctx *shellctx.EngineContext) Outcome {
	// Redirections attached to the group are the caller's concern to open
	// before Drive and close after; this driver only threads control flow.
	var last Outcome
	for _, child := range node.Children() {
		last = d.Drive(child, ctx)
		if last.Kind != Normal {
			return last
		}
	}
	return last
}

// driveSubshell implements spec §4.6's `( ... )`: runs the compound list
// in this process against ctx.Fork() (spec §4.6a) and folds the child's
// outcome back to a plain exit status — break/continue/return never
// escape a subshell boundary since the forked context has its own
// call/loop stack. No OS process is created, so the subshell shares the
// parent's symbol table.
func (d *Driver) driveSubshell(node ast.Node, ctx *shellctx.EngineContext) Outcome {
	child := ctx.Fork()
	var status int
	for _, stmt := range node.Children() {
		out := d.Drive(stmt, child)
		status = out.ExitStatus
		if out.Kind == Return || out.Kind == Exit {
			break
		}
	}
	ctx.SetExitStatus(status)
	return Outcome{Kind: Normal, ExitStatus: status}
}

// driveLoop implements while/until (spec §4.6): children()[0] is the
// condition command list, children()[1:] is the body. Unlike for/select,
// the condition is itself a command list the driver already knows how to
// run — it needs no word-expansion collaborator, so it is re-driven
// directly on every iteration rather than stubbed out.
func (d *Driver) driveLoop(node ast.Node, ctx *shellctx.EngineContext) Outcome {
	children := node.Children()
	if len(children) == 0 {
		return Outcome{Kind: Normal}
	}
	cond := children[0]
	body := children[1:]
	wantZero := node.Kind() == ast.KindWhile // while continues while status==0; until continues while status!=0

	status := ctx.ExitStatus()
	for {
		condOut := d.Drive(cond, ctx)
		status = condOut.ExitStatus
		if condOut.Kind != Normal {
			return condOut
		}
		if (condOut.ExitStatus == 0) != wantZero {
			break
		}

		var brokeOut bool
		for _, stmt := range body {
			out := d.Drive(stmt, ctx)
			status = out.ExitStatus
			switch out.Kind {
			case Break:
				if out.Levels > 1 {
					return Outcome{Kind: Break, ExitStatus: status, Levels: out.Levels - 1}
				}
				brokeOut = true
			case Continue:
				if out.Levels > 1 {
					return Outcome{Kind: Continue, ExitStatus: status, Levels: out.Levels - 1}
				}
			case Return, Exit:
				return out
			}
			if brokeOut || out.Kind == Continue {
				break
			}
		}
		if brokeOut {
			break
		}
	}
	ctx.SetExitStatus(status)
	return Outcome{Kind: Normal, ExitStatus: status}
}

// driveForSelect is a placeholder for for/select iteration, which — unlike
// a while/until condition — iterates over a word list produced by
// expanding node.Value()'s `in words` clause. That expansion is the
// ast.Expander's concern (see package doc); this package has no expander
// to call, so it degrades to a no-op rather than a word list it cannot
// produce. A caller with an Expander wires its own iteration by expanding
// the word list and re-driving the body per item.
func (d *Driver) driveForSelect(node ast.Node, ctx *shellctx.EngineContext) Outcome {
	return Outcome{Kind: Normal, ExitStatus: ctx.ExitStatus()}
}

func (d *Driver) driveIf(node ast.Node, ctx *shellctx.EngineContext) Outcome {
	children := node.Children()
	if len(children) == 0 {
		return Outcome{Kind: Normal}
	}
	cond := d.Drive(children[0], ctx)
	if cond.Kind != Normal {
		return cond
	}
	if cond.ExitStatus == 0 && len(children) > 1 {
		return d.Drive(children[1], ctx)
	}
	if cond.ExitStatus != 0 && len(children) > 2 {
		return d.Drive(children[2], ctx)
	}
	return Outcome{Kind: Normal, ExitStatus: 0}
}

func (d *Driver) driveCase(node ast.Node, ctx *shellctx.EngineContext) Outcome {
	// Pattern matching against node.Value() is the expander's concern;
	// the driver runs whichever child the caller has already selected as
	// this node's sole matched-arm child.
	for _, child := range node.Children() {
		return d.Drive(child, ctx)
	}
	return Outcome{Kind: Normal}
}

func (d *Driver) driveFunctionDef(node ast.Node, ctx *shellctx.EngineContext) Outcome {
	// Defining a function is a no-op for exit status; registration lives
	// in whatever FunctionTable the dispatch package was built with.
	ctx.SetExitStatus(0)
	return Outcome{Kind: Normal, ExitStatus: 0}
}
