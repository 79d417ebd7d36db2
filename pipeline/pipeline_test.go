package pipeline

import (
	"os"
	"os/exec"
	"testing"

	"github.com/moisam/laylash-engine/jobtable"
)

// externalRunner resolves every stage to a real external binary by argv[0]
// looked up on PATH, and never supports the in-process fast path.
type externalRunner struct{}

func (externalRunner) Command(stage Stage) (*exec.Cmd, error) {
	path, err := exec.LookPath(stage.Argv[0])
	if err != nil {
		return nil, err
	}
	return exec.Command(path, stage.Argv[1:]...), nil
}

func (externalRunner) RunInProcess(stage Stage, stdin, stdout, stderr *os.File) (int, error) {
	panic("not used in this test")
}

func TestBuildTwoStagePipelineForeground(t *testing.T) {
	stages := []Stage{
		{Argv: []string{"echo", "hello"}},
		{Argv: []string{"cat"}},
	}
	jobs := jobtable.New(0)
	result, err := Build(stages, BuildOptions{
		Foreground: true,
		Runner:     externalRunner{},
		Jobs:       jobs,
		Command:    "echo hello | cat",
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.Status != 0 {
		t.Errorf("Status = %d, want 0", result.Status)
	}
	if len(result.Job.Pids) != 2 {
		t.Errorf("len(Pids) = %d, want 2", len(result.Job.Pids))
	}
}

func TestBuildBackgroundDoesNotWait(t *testing.T) {
	stages := []Stage{
		{Argv: []string{"sleep", "0.05"}},
	}
	jobs := jobtable.New(0)
	result, err := Build(stages, BuildOptions{
		Foreground: false,
		Runner:     externalRunner{},
		Jobs:       jobs,
		Command:    "sleep 0.05 &",
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.Job.Num == 0 {
		t.Error("expected the backgrounded job to be registered with a job number")
	}
	if result.Status != 0 {
		t.Errorf("background Build should not report a wait status, got %d", result.Status)
	}
}

func TestBuildInvertsStatus(t *testing.T) {
	stages := []Stage{
		{Argv: []string{"false"}},
	}
	jobs := jobtable.New(0)
	result, err := Build(stages, BuildOptions{
		Foreground: true,
		Invert:     true,
		Runner:     externalRunner{},
		Jobs:       jobs,
		Command:    "! false",
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.Status != 0 {
		t.Errorf("inverted status of a failing command = %d, want 0", result.Status)
	}
}

func TestBuildMissingExecutableErrors(t *testing.T) {
	stages := []Stage{
		{Argv: []string{"this-binary-should-not-exist-laylash"}},
	}
	jobs := jobtable.New(0)
	if _, err := Build(stages, BuildOptions{
		Foreground: true,
		Runner:     externalRunner{},
		Jobs:       jobs,
		Command:    "this-binary-should-not-exist-laylash",
	}); err == nil {
		t.Fatal("expected an error for an unresolvable command")
	}
}
