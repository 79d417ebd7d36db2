// Package spawner is the single place where the engine creates new
// processes, per spec §4.3. Every fork-or-equivalent call in this
// repository goes through Spawn.
//
// SyncPipe and Fifo are carried over from the teacher's utils/sync.go
// near-verbatim: the engine needs exactly the same parent/child handshake
// primitive the teacher used for container create/start synchronization,
// here repurposed for command-substitution and process-substitution
// synchronization (waiting for a `<(...)`/`>(...)` subprocess to finish
// setting up its end of a FIFO before the parent resumes).
package spawner

import (
	"fmt"
	"os"
	"syscall"
)

// SyncPipe is a pipe used for parent-child synchronization.
type SyncPipe struct {
	parent *os.File
	child  *os.File
}

// NewSyncPipe creates a new synchronization pipe.
func NewSyncPipe() (*SyncPipe, error) {
	fds := make([]int, 2)
	if err := syscall.Pipe(fds); err != nil {
		return nil, fmt.Errorf("pipe: %w", err)
	}

	return &SyncPipe{
		parent: os.NewFile(uintptr(fds[0]), "syncpipe-parent"),
		child:  os.NewFile(uintptr(fds[1]), "syncpipe-child"),
	}, nil
}

// ParentFile returns the parent (reading) end of the pipe.
func (s *SyncPipe) ParentFile() *os.File { return s.parent }

// ChildFile returns the child (writing) end of the pipe.
func (s *SyncPipe) ChildFile() *os.File { return s.child }

// CloseParent closes the parent end of the pipe.
func (s *SyncPipe) CloseParent() error {
	if s.parent != nil {
		return s.parent.Close()
	}
	return nil
}

// CloseChild closes the child end of the pipe.
func (s *SyncPipe) CloseChild() error {
	if s.child != nil {
		return s.child.Close()
	}
	return nil
}

// Close closes both ends of the pipe.
func (s *SyncPipe) Close() {
	s.CloseParent()
	s.CloseChild()
}

// Wait waits for a signal on the parent end (blocking read).
func (s *SyncPipe) Wait() error {
	buf := make([]byte, 1)
	_, err := s.parent.Read(buf)
	return err
}

// Signal sends a signal on the child end.
func (s *SyncPipe) Signal() error {
	_, err := s.child.Write([]byte{0})
	return err
}

// WaitWithError waits and returns any error message written by the child.
func (s *SyncPipe) WaitWithError() error {
	buf := make([]byte, 1024)
	n, err := s.parent.Read(buf)
	if err != nil {
		return err
	}
	if n > 0 && buf[0] != 0 {
		return fmt.Errorf("%s", string(buf[:n]))
	}
	return nil
}

// SignalError sends an error message in place of the normal one-byte
// signal.
func (s *SyncPipe) SignalError(err error) error {
	_, writeErr := s.child.Write([]byte(err.Error()))
	return writeErr
}

// Fifo provides FIFO-based synchronization, used for process substitution
// where the consuming/producing ends are separate forked processes rather
// than parent/child with a shared anonymous pipe.
type Fifo struct {
	path string
}

// NewFifo creates a new FIFO at the given path.
func NewFifo(path string) (*Fifo, error) {
	os.Remove(path)

	if err := syscall.Mkfifo(path, 0600); err != nil {
		return nil, fmt.Errorf("mkfifo %s: %w", path, err)
	}

	return &Fifo{path: path}, nil
}

// OpenFifo returns a handle to an already-created FIFO.
func OpenFifo(path string) *Fifo {
	return &Fifo{path: path}
}

// Path returns the path to the FIFO.
func (f *Fifo) Path() string { return f.path }

// Wait opens the FIFO for reading and waits for a signal.
func (f *Fifo) Wait() error {
	file, err := os.OpenFile(f.path, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("open fifo: %w", err)
	}
	defer file.Close()

	buf := make([]byte, 1)
	_, err = file.Read(buf)
	return err
}

// Signal opens the FIFO for writing and sends a signal.
func (f *Fifo) Signal() error {
	file, err := os.OpenFile(f.path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open fifo: %w", err)
	}
	defer file.Close()

	_, err = file.Write([]byte{0})
	return err
}

// Remove removes the FIFO from the filesystem.
func (f *Fifo) Remove() error {
	return os.Remove(f.path)
}
