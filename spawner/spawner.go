package spawner

import (
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/moisam/laylash-engine/cerrors"
	"github.com/moisam/laylash-engine/logging"
)

// MaxForkAttempts is how many times Spawn tries to start a command that
// keeps failing with EAGAIN (spec §4.3, Design Notes
// open question (a)): preserved exactly as documented, not re-derived from
// any stated system property.
const MaxForkAttempts = 5

// ForkInitialDelay is the starting delay before the first retry, doubling
// on each subsequent attempt.
const ForkInitialDelay = time.Microsecond

// Spawn starts cmd, making at most MaxForkAttempts attempts on EAGAIN with
// a delay doubling from ForkInitialDelay (spec §4.3). Any other start error
// is terminal. Spawn sets no SysProcAttr and runs no pre-exec callback:
// Go's os/exec has no general signal-disposition-restoring hook, and
// signals the shell catches revert to their default disposition across
// exec on their own; this is the Go-native equivalent of sig.c's
// restore_signals.
func Spawn(cmd *exec.Cmd) (*os.Process, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = ForkInitialDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	bounded := backoff.WithMaxRetries(b, MaxForkAttempts-1)

	var process *os.Process
	attempt := 0
	op := func() error {
		attempt++
		err := cmd.Start()
		if err == nil {
			process = cmd.Process
			return nil
		}
		if isEagain(err) {
			logging.Default().Debug("fork retry", "attempt", attempt, "err", err)
			return err
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(op, bounded); err != nil {
		if isEagain(err) {
			return nil, cerrors.Wrap(err, cerrors.ErrForkExhaustion, "spawn")
		}
		return nil, cerrors.Wrap(err, cerrors.ErrInternal, "spawn")
	}
	return process, nil
}

func isEagain(err error) bool {
	for {
		switch e := err.(type) {
		case *os.SyscallError:
			err = e.Err
		case *os.PathError:
			err = e.Err
		case syscall.Errno:
			return e == syscall.EAGAIN
		default:
			return false
		}
	}
}
