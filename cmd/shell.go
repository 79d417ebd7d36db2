package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// shellCmd is the minimal line-oriented front end described in SPEC_FULL:
// not a POSIX-complete tokenizer, just enough splitting (ast.ParseLine) to
// drive dispatch/pipeline/enginectl end-to-end for manual and integration
// testing. A real interactive shell needs a full word-expansion front end,
// which is explicitly out of this engine's scope.
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Run the minimal line-oriented front end",
	Args:  cobra.NoArgs,
	RunE:  runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, args []string) error {
	e := getEngine()
	reader := bufio.NewReader(os.Stdin)
	lineNo := 0

	for {
		lineNo++
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			status, runErr := e.runLine(line, lineNo)
			if runErr == errExitRequested {
				os.Exit(status)
			}
			if runErr != nil {
				fmt.Fprintln(os.Stderr, runErr)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}
	os.Exit(e.ctx.ExitStatus())
	return nil
}
