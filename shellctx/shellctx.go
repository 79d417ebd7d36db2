// Package shellctx aggregates everything one engine instance needs into a
// single explicitly-passed struct, the same way the teacher's Container
// type aggregates a running container's state behind one mutex rather than
// scattering it across package-level variables.
//
// There is exactly one of these per shell process (or per subshell, which
// gets its own copy via Fork). Nothing in this engine reaches for a
// package-level global; every collaborator that needs engine state
// receives an *EngineContext explicitly.
package shellctx

import (
	"sync"
	"sync/atomic"

	"github.com/moisam/laylash-engine/ast"
	"github.com/moisam/laylash-engine/cerrors"
	"github.com/moisam/laylash-engine/config"
	"github.com/moisam/laylash-engine/jobtable"
	"github.com/moisam/laylash-engine/sigrouter"
	"github.com/moisam/laylash-engine/terminal"
	"github.com/moisam/laylash-engine/trap"
)

var errFuncNestExceeded = cerrors.New(cerrors.ErrResourceCap, "shellctx.PushFrame", "function nesting exceeds FUNCNEST")

// CallFrame is one entry in the function/dot-script call stack (spec §4.6,
// consulted by `caller`, `$FUNCNAME`, and FUNCNEST enforcement).
type CallFrame struct {
	Name       string
	SourceName string
	Line       int
}

// EngineContext is the aggregate engine state threaded through every
// package that needs it: job table, signal router, trap table, terminal
// arbiter, configuration, and the borrowed-tree collaborators (symbol
// table, expander, alias table), plus the mutable bits the control-flow
// driver owns directly (exit status, call-frame stack, subshell depth).
type EngineContext struct {
	Jobs     *jobtable.Table
	Router   *sigrouter.Router
	Traps    *trap.Table
	TrapQ    *trap.Queue
	Terminal *terminal.Arbiter
	Config   *config.Config

	Symtab  ast.SymbolTable
	Expand  ast.Expander
	Aliases ast.AliasTable
	Source  ast.SourceContext

	mu         sync.Mutex
	frames     []CallFrame
	subshell   int
	restricted bool
	jobControl bool

	exitStatus int32 // atomic: read by traps/signal handlers concurrently with the driver
}

// New builds an EngineContext from its collaborators. Any of Jobs, Router,
// Traps, TrapQ, or Terminal may be nil (e.g. a non-interactive, non-job-
// controlled script engine has no terminal arbiter).
func New(jobs *jobtable.Table, router *sigrouter.Router, traps *trap.Table, trapQ *trap.Queue, term *terminal.Arbiter, cfg *config.Config) *EngineContext {
	if cfg == nil {
		cfg = config.Default()
	}
	return &EngineContext{
		Jobs:       jobs,
		Router:     router,
		Traps:      traps,
		TrapQ:      trapQ,
		Terminal:   term,
		Config:     cfg,
		restricted: cfg.Has(config.OptRestricted),
		jobControl: cfg.Has(config.OptJobControl),
	}
}

// ExitStatus returns the last recorded command exit status ($?).
func (c *EngineContext) ExitStatus() int {
	return int(atomic.LoadInt32(&c.exitStatus))
}

// SetExitStatus records the most recent command's exit status.
func (c *EngineContext) SetExitStatus(status int) {
	atomic.StoreInt32(&c.exitStatus, int32(status))
}

// RestrictedMode reports whether -r is in effect.
func (c *EngineContext) RestrictedMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.restricted
}

// SetRestrictedMode sets -r. Per spec, once set it cannot be unset for the
// remainder of the shell's life; callers enforce that, not this setter.
func (c *EngineContext) SetRestrictedMode(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.restricted = on
}

// JobControl reports whether -m is in effect.
func (c *EngineContext) JobControl() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobControl
}

// SetJobControl sets -m.
func (c *EngineContext) SetJobControl(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobControl = on
}

// SubshellDepth reports $BASH_SUBSHELL.
func (c *EngineContext) SubshellDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subshell
}

// PushFrame pushes a call frame (function call or dot-script source).
// Returns an error if doing so would exceed FUNCNEST (spec §4.5 phase 8).
func (c *EngineContext) PushFrame(frame CallFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Config.FuncNest > 0 && len(c.frames) >= c.Config.FuncNest {
		return errFuncNestExceeded
	}
	c.frames = append(c.frames, frame)
	return nil
}

// PopFrame pops the innermost call frame, a no-op if the stack is empty.
func (c *EngineContext) PopFrame() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		return
	}
	c.frames = c.frames[:len(c.frames)-1]
}

// Frames returns a snapshot of the call stack, innermost last, for
// `caller`/$FUNCNAME.
func (c *EngineContext) Frames() []CallFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CallFrame, len(c.frames))
	copy(out, c.frames)
	return out
}

// Fork produces the EngineContext for a subshell (spec §4.6a): a shallow
// copy with the subshell depth incremented, job control and the job table
// cleared, and aliases forgotten. It creates no process: the copy shares
// the parent's symbol table, trap table and config, so changes made
// through it are visible to the parent. Traps are not reset and -e is
// left as it is.
func (c *EngineContext) Fork() *EngineContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	child := &EngineContext{
		Jobs:       nil, // spec §4.6a: subshells clear job control
		Router:     c.Router,
		Traps:      c.Traps,
		TrapQ:      c.TrapQ,
		Terminal:   c.Terminal,
		Config:     c.Config,
		Symtab:     c.Symtab,
		Expand:     c.Expand,
		Aliases:    nil, // subshells forget all aliases
		Source:     c.Source,
		subshell:   c.subshell + 1,
		restricted: c.restricted,
		jobControl: false,
	}
	child.SetExitStatus(c.ExitStatus())
	return child
}
