package cmd

import (
	"fmt"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/moisam/laylash-engine/sigrouter"
	"github.com/moisam/laylash-engine/trap"
)

var trapCmd = &cobra.Command{
	Use:   "trap [action] [event...]",
	Short: "Inspect or set the trap table",
	Long: `With no arguments, print every registered trap ("trap -p"
behaviour). With an action and one or more events, register that action
for each event; an action of "-" unsets the event.`,
	RunE: runTrap,
}

func init() {
	rootCmd.AddCommand(trapCmd)
}

func runTrap(cmd *cobra.Command, args []string) error {
	e := getEngine()

	if len(args) == 0 {
		for event, disp := range e.ctx.Traps.Save() {
			if disp.Unset {
				continue
			}
			body := disp.ScriptBody
			if disp.Ignored {
				body = ""
			}
			fmt.Printf("trap -- %q %s\n", body, event)
		}
		return nil
	}

	action := args[0]
	for _, evName := range args[1:] {
		event, err := parseEventName(evName)
		if err != nil {
			return fmt.Errorf("trap: %w", err)
		}
		if action == "-" {
			e.ctx.Traps.Unset(event)
			continue
		}
		e.ctx.Traps.Set(event, trap.Disposition{ScriptBody: action})
	}
	return nil
}

func parseEventName(name string) (trap.EventKind, error) {
	switch name {
	case "EXIT":
		return trap.EventExit, nil
	case "ERR":
		return trap.EventErr, nil
	case "DEBUG":
		return trap.EventDebug, nil
	case "RETURN":
		return trap.EventReturn, nil
	case "CHLD":
		return trap.EventChld, nil
	}
	if n, err := strconv.Atoi(name); err == nil {
		return trap.SignalEvent(syscall.Signal(n)), nil
	}
	sig, err := sigrouter.ParseSignal(name)
	if err != nil {
		return 0, err
	}
	return trap.SignalEvent(sig), nil
}
