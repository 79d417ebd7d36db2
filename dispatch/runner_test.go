package dispatch

import (
	"os"
	"testing"

	"github.com/moisam/laylash-engine/pipeline"
)

func TestRunnerCommandResolvesExternal(t *testing.T) {
	r := &Runner{}
	cmd, err := r.Command(pipeline.Stage{Argv: []string{"true"}})
	if err != nil {
		t.Fatalf("Command: %v", err)
	}
	if cmd.Path == "" {
		t.Error("expected a resolved path for an external command")
	}
}

func TestRunnerCommandRejectsEmptyArgv(t *testing.T) {
	r := &Runner{}
	if _, err := r.Command(pipeline.Stage{}); err == nil {
		t.Fatal("expected an error for an empty argv stage")
	}
}

func TestRunnerRunInProcessBuiltin(t *testing.T) {
	reg := NewRegistry()
	r := &Runner{Options: ClassifyOptions{Builtins: reg}}
	status, err := r.RunInProcess(pipeline.Stage{Argv: []string{"true"}}, nil, os.Stdout, os.Stderr)
	if err != nil {
		t.Fatalf("RunInProcess: %v", err)
	}
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
}

func TestRunnerRunInProcessFalseBuiltin(t *testing.T) {
	reg := NewRegistry()
	r := &Runner{Options: ClassifyOptions{Builtins: reg}}
	status, err := r.RunInProcess(pipeline.Stage{Argv: []string{"false"}}, nil, os.Stdout, os.Stderr)
	if err != nil {
		t.Fatalf("RunInProcess: %v", err)
	}
	if status != 1 {
		t.Errorf("status = %d, want 1", status)
	}
}
