package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List the job table",
	Long:  `List every job currently tracked by the shell's job table.`,
	Args:  cobra.NoArgs,
	RunE:  runJobs,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	e := getEngine()
	for _, j := range e.ctx.Jobs.All() {
		state := "Running"
		if j.Stopped() {
			state = "Stopped"
		} else if j.Complete() {
			state = "Done"
		}
		marker := " "
		switch j.Num {
		case e.ctx.Jobs.Current():
			marker = "+"
		case e.ctx.Jobs.Previous():
			marker = "-"
		}
		fmt.Printf("[%d]%s  %-8s %s\n", j.Num, marker, state, j.Command)
	}
	return nil
}
