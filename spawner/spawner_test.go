package spawner

import (
	"os/exec"
	"testing"

	"github.com/moisam/laylash-engine/cerrors"
)

func TestSpawnSuccess(t *testing.T) {
	cmd := exec.Command("/bin/true")
	proc, err := Spawn(cmd)
	if err != nil {
		t.Fatalf("Spawn(/bin/true) error: %v", err)
	}
	if proc == nil {
		t.Fatal("Spawn should return a non-nil process on success")
	}
	proc.Wait()
}

func TestSpawnNoSuchFile(t *testing.T) {
	cmd := exec.Command("/no/such/binary-laylash-test")
	_, err := Spawn(cmd)
	if err == nil {
		t.Fatal("expected an error starting a nonexistent binary")
	}
	if !cerrors.IsKind(err, cerrors.ErrInternal) {
		t.Errorf("expected ErrInternal for a non-EAGAIN start failure, got %v", err)
	}
}

func TestSyncPipeRoundTrip(t *testing.T) {
	sp, err := NewSyncPipe()
	if err != nil {
		t.Fatal(err)
	}
	defer sp.Close()

	done := make(chan error, 1)
	go func() { done <- sp.Wait() }()

	if err := sp.Signal(); err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Wait() = %v, want nil", err)
	}
}

func TestFifoRoundTrip(t *testing.T) {
	path := t.TempDir() + "/test.fifo"
	f, err := NewFifo(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Remove()

	done := make(chan error, 1)
	go func() { done <- f.Wait() }()

	if err := f.Signal(); err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Wait() = %v, want nil", err)
	}
}
