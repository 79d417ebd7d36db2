package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/moisam/laylash-engine/dispatch"
)

// pipelineStageCmd is the hidden entry point a re-exec'd pipeline stage
// lands on (see dispatch.Runner.Command / stageArgvEnv): it decodes the
// argv the parent encoded into the environment and runs exactly that
// builtin or special built-in stage, then exits with its status (127 for
// a stage that is a function or does not resolve). Never invoked directly by a user, the same way the teacher's
// container/exec.go re-execs itself against an internal namespace-join
// subcommand rather than a documented one.
var pipelineStageCmd = &cobra.Command{
	Use:    reExecSubcommandName,
	Hidden: true,
	Args:   cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		e := getEngine()
		status := dispatch.RunReExecStage(e.classOp, e.runner.Symtab)
		os.Exit(status)
	},
}

func init() {
	rootCmd.AddCommand(pipelineStageCmd)
}
