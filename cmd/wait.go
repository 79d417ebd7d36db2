package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moisam/laylash-engine/config"
	"github.com/moisam/laylash-engine/jobtable"
)

var waitCmd = &cobra.Command{
	Use:   "wait [jobspec]",
	Short: "Block until a job (or every job) completes",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWait,
}

func init() {
	rootCmd.AddCommand(waitCmd)
}

func runWait(cmd *cobra.Command, args []string) error {
	e := getEngine()

	if len(args) == 0 {
		for _, job := range e.ctx.Jobs.All() {
			if err := waitOneJob(e, job); err != nil {
				return err
			}
		}
		return nil
	}

	job, err := e.ctx.Jobs.Resolve(args[0])
	if err != nil {
		return fmt.Errorf("wait: %w", err)
	}
	return waitOneJob(e, job)
}

func waitOneJob(e *engine, job *jobtable.Job) error {
	if e.ctx.Router != nil {
		for _, pid := range job.Pids {
			_, err := e.ctx.Router.WaitForeground(pid)
			e.drainTraps()
			if err != nil {
				return fmt.Errorf("wait: %w", err)
			}
		}
	}
	status := e.ctx.Jobs.AggregateStatus(job, e.ctx.Config.Has(config.OptPipefail))
	e.ctx.SetExitStatus(status)
	return e.ctx.Jobs.Remove(job.Num)
}
