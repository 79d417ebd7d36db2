package cmd

import (
	"fmt"
	"os"
	"sync"

	"github.com/moisam/laylash-engine/ast"
	"github.com/moisam/laylash-engine/config"
	"github.com/moisam/laylash-engine/dispatch"
	"github.com/moisam/laylash-engine/enginectl"
	"github.com/moisam/laylash-engine/jobtable"
	"github.com/moisam/laylash-engine/pipeline"
	"github.com/moisam/laylash-engine/shellctx"
	"github.com/moisam/laylash-engine/sigrouter"
	"github.com/moisam/laylash-engine/terminal"
	"github.com/moisam/laylash-engine/trap"
)

// engine bundles the one EngineContext this process drives plus the
// collaborators every subcommand needs to reach it, mirroring the way
// container/container.go's Container ties one running container to the
// commands operating on it. Built lazily by getEngine the first time a
// subcommand needs it, then shared by every subcommand's RunE.
type engine struct {
	ctx     *shellctx.EngineContext
	driver  *enginectl.Driver
	classOp dispatch.ClassifyOptions
	runner  *dispatch.Runner
}

var (
	engineOnce sync.Once
	sharedEng  *engine
)

// pipelineAdapter and dispatchAdapter satisfy enginectl's PipelineRunner/
// SimpleRunner by closing over the one ClassifyOptions/Runner this process
// built, so enginectl never needs to import dispatch or pipeline itself.
type pipelineAdapter struct {
	e *engine
}

func (a *pipelineAdapter) RunPipeline(node ast.Node, ctx *shellctx.EngineContext, background bool) (int, error) {
	children := node.Children()
	stages := make([]pipeline.Stage, len(children))
	for i, c := range children {
		stages[i] = pipeline.Stage{Node: c, Argv: c.Args()}
	}
	result, err := pipeline.Build(stages, pipeline.BuildOptions{
		Foreground: !background,
		JobControl: ctx.JobControl(),
		Lastpipe:   ctx.Config.Has(config.OptLastpipe),
		Pipefail:   ctx.Config.Has(config.OptPipefail),
		Command:    node.Value(),
		Runner:     a.e.runner,
		Jobs:       ctx.Jobs,
		Router:     ctx.Router,
		Arbiter:    ctx.Terminal,
		Symtab:     ctx.Symtab,
		TrapQueue:  ctx.TrapQ,
		TrapTable:  ctx.Traps,
		TrapRunner: a.e.driver.TrapRunner,
	})
	if err != nil {
		return 1, err
	}
	return result.Status, nil
}

type dispatchAdapter struct {
	e *engine
}

func (a *dispatchAdapter) RunSimple(node ast.Node, ctx *shellctx.EngineContext) (int, error) {
	return dispatch.Dispatch(node, dispatch.ExecuteOptions{
		Classify: a.e.classOp,
		Symtab:   ctx.Symtab,
		Aliases:  ctx.Aliases,
		Router:   ctx.Router,
	})
}

// trapRunnerAdapter satisfies trap.Runner by handing a fired trap's script
// body to the same line-execution entry point interactive input goes
// through, so a trap body is just another line driven through enginectl.
type trapRunnerAdapter struct {
	e *engine
}

func (a *trapRunnerAdapter) Run(scriptBody string) error {
	_, err := a.e.runLine(scriptBody, 0)
	if err == errExitRequested {
		return nil
	}
	return err
}

// getEngine lazily constructs the shared engine exactly once per process,
// wiring config -> job table/router/traps/terminal -> shellctx ->
// enginectl the same order the teacher's root.go builds up its
// PersistentPreRunE state.
func getEngine() *engine {
	engineOnce.Do(func() {
		cfg := config.FromEnvironment(config.Default())

		jobs := jobtable.New(cfg.MaxJobs)
		trapTable := trap.NewTable()
		trapQueue := trap.NewQueue()
		symtab := ast.NewMapSymbolTable()

		router := sigrouter.New(jobs, trapQueue, symtab, cfg.Has(config.OptJobControl), cfg.DeadRingCapacity)
		router.Start(terminal.IsInteractive(os.Stdin))

		var arbiter *terminal.Arbiter
		if terminal.IsInteractive(os.Stdin) {
			if a, err := terminal.NewArbiter(int(os.Stdin.Fd())); err == nil {
				arbiter = a
			}
		}

		ctx := shellctx.New(jobs, router, trapTable, trapQueue, arbiter, cfg)

		e := &engine{ctx: ctx}
		e.classOp = dispatch.ClassifyOptions{
			Config:   cfg,
			Builtins: dispatch.NewRegistry(),
			Hash:     dispatch.NewPathHash(),
		}
		self, _ := os.Executable()
		e.runner = &dispatch.Runner{
			Options:          e.classOp,
			ShellSelf:        self,
			ReExecSubcommand: reExecSubcommandName,
			Symtab:           symtab,
		}
		e.driver = &enginectl.Driver{
			Pipelines:  &pipelineAdapter{e: e},
			Simple:     &dispatchAdapter{e: e},
			TrapRunner: &trapRunnerAdapter{e: e},
		}
		ctx.Symtab = symtab

		sharedEng = e
	})
	return sharedEng
}

// runLine parses one line with the front end's minimal splitter and
// drives it through enginectl, returning its exit status.
func (e *engine) runLine(line string, lineNo int) (int, error) {
	node, err := ast.ParseLine(line, lineNo)
	if err != nil {
		return 2, err
	}
	if node == nil {
		return e.ctx.ExitStatus(), nil
	}
	out := e.driver.Drive(node, e.ctx)
	if out.Kind == enginectl.Exit {
		return out.ExitStatus, errExitRequested
	}
	return out.ExitStatus, nil
}

var errExitRequested = fmt.Errorf("enginectl: exit requested")

// drainTraps runs any trap queued while a subcommand blocked on
// sigrouter.WaitForeground outside the main Drive loop (fg/wait), per
// spec §4.8's "immediately after wait returns".
func (e *engine) drainTraps() {
	if e.ctx.TrapQ == nil || e.ctx.Traps == nil || e.driver.TrapRunner == nil {
		return
	}
	if err := e.ctx.TrapQ.DrainPending(e.ctx.Traps, e.driver.TrapRunner); err != nil {
		fmt.Fprintln(os.Stderr, "trap:", err)
	}
}
