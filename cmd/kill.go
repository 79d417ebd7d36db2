package cmd

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/moisam/laylash-engine/sigrouter"
)

var killCmd = &cobra.Command{
	Use:   "kill <jobspec> [signal]",
	Short: "Send a signal to a job",
	Long:  `Send the specified signal to every process in a job's process group. Default signal is SIGTERM.`,
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runKill,
}

func init() {
	rootCmd.AddCommand(killCmd)
}

func runKill(cmd *cobra.Command, args []string) error {
	e := getEngine()

	job, err := e.ctx.Jobs.Resolve(args[0])
	if err != nil {
		return fmt.Errorf("kill: %w", err)
	}

	sigStr := "SIGTERM"
	if len(args) > 1 {
		sigStr = args[1]
	}
	sig, err := sigrouter.ParseSignal(sigStr)
	if err != nil {
		return fmt.Errorf("kill: %w", err)
	}

	return syscall.Kill(-job.Pgid, sig)
}
