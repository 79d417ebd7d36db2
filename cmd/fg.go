package cmd

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/moisam/laylash-engine/config"
	"github.com/moisam/laylash-engine/jobtable"
)

var fgCmd = &cobra.Command{
	Use:   "fg [jobspec]",
	Short: "Resume a job in the foreground",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runFg,
}

func init() {
	rootCmd.AddCommand(fgCmd)
}

func runFg(cmd *cobra.Command, args []string) error {
	e := getEngine()
	spec := "%%"
	if len(args) > 0 {
		spec = args[0]
	}
	job, err := e.ctx.Jobs.Resolve(spec)
	if err != nil {
		return fmt.Errorf("fg: %w", err)
	}
	return resumeForeground(e, job)
}

func resumeForeground(e *engine, job *jobtable.Job) error {
	fmt.Println(job.Command)

	if e.ctx.Terminal != nil {
		if err := e.ctx.Terminal.TransferToJob(job.Pgid); err != nil {
			return fmt.Errorf("fg: %w", err)
		}
		defer e.ctx.Terminal.ReturnToShell()
	}
	if job.Stopped() {
		if err := syscall.Kill(-job.Pgid, syscall.SIGCONT); err != nil {
			return fmt.Errorf("fg: %w", err)
		}
	}

	if e.ctx.Router != nil {
		for _, pid := range job.Pids {
			_, err := e.ctx.Router.WaitForeground(pid)
			e.drainTraps()
			if err != nil {
				return fmt.Errorf("fg: %w", err)
			}
		}
	}

	status := e.ctx.Jobs.AggregateStatus(job, e.ctx.Config.Has(config.OptPipefail))
	e.ctx.SetExitStatus(status)
	return e.ctx.Jobs.Remove(job.Num)
}
