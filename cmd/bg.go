package cmd

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
)

var bgCmd = &cobra.Command{
	Use:   "bg [jobspec]",
	Short: "Resume a stopped job in the background",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBg,
}

func init() {
	rootCmd.AddCommand(bgCmd)
}

func runBg(cmd *cobra.Command, args []string) error {
	e := getEngine()
	spec := "%%"
	if len(args) > 0 {
		spec = args[0]
	}
	job, err := e.ctx.Jobs.Resolve(spec)
	if err != nil {
		return fmt.Errorf("bg: %w", err)
	}
	if err := syscall.Kill(-job.Pgid, syscall.SIGCONT); err != nil {
		return fmt.Errorf("bg: %w", err)
	}
	fmt.Printf("[%d]+ %s &\n", job.Num, job.Command)
	return nil
}
