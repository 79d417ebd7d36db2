// Package cerrors: predefined sentinel errors for common engine failures.
package cerrors

// Job control errors.
var (
	// ErrJobNotFound indicates the job spec did not resolve to any job.
	ErrJobNotFound = &EngineError{
		Kind:   ErrNotFound,
		Detail: "no such job",
	}

	// ErrJobAmbiguous indicates a %prefix or %?substr spec matched more than
	// one job.
	ErrJobAmbiguous = &EngineError{
		Kind:   ErrAmbiguousJobSpec,
		Detail: "ambiguous job spec",
	}

	// ErrJobTableFull indicates the job table has no free slot.
	ErrJobTableFull = &EngineError{
		Kind:   ErrResourceCap,
		Detail: "job table is full",
	}

	// ErrTooManyProcesses indicates a pipeline exceeded the per-job process
	// ceiling.
	ErrTooManyProcesses = &EngineError{
		Kind:   ErrResourceCap,
		Detail: "too many processes in job",
	}

	// ErrNoCurrentJob indicates there is no current job to resolve against
	// bare "%%"/"%+"/"%-".
	ErrNoCurrentJob = &EngineError{
		Kind:   ErrInvalidState,
		Detail: "no current job",
	}
)

// Process spawn and exec errors.
var (
	// ErrForkFailed indicates fork(2) failed after exhausting the retry
	// budget for EAGAIN.
	ErrForkFailed = &EngineError{
		Kind:   ErrForkExhaustion,
		Detail: "fork failed",
	}

	// ErrCommandNotFound indicates command search exhausted $PATH.
	ErrCommandNotFound = &EngineError{
		Kind:   ErrExecNotFound,
		Detail: "command not found",
	}

	// ErrCommandNotExecutable indicates the resolved path is not executable.
	ErrCommandNotExecutable = &EngineError{
		Kind:   ErrExecNotExecutable,
		Detail: "permission denied",
	}

	// ErrExecFormat indicates exec(2) failed with ENOEXEC and the script
	// fallback also failed or the file is not a valid script.
	ErrExecFormat = &EngineError{
		Kind:   ErrExecNotExecutable,
		Detail: "exec format error",
	}
)

// Redirection and descriptor errors.
var (
	// ErrRedirectTarget indicates a redirection target file could not be
	// opened.
	ErrRedirectTarget = &EngineError{
		Kind:   ErrRedirection,
		Detail: "cannot open redirection target",
	}

	// ErrBadFileDescriptor indicates a dup2 target was out of range or
	// already closed.
	ErrBadFileDescriptor = &EngineError{
		Kind:   ErrRedirection,
		Detail: "bad file descriptor",
	}

	// ErrPipeAllocation indicates pipe(2) failed while building a pipeline.
	ErrPipeAllocation = &EngineError{
		Kind:   ErrResource,
		Detail: "failed to allocate pipe",
	}
)

// Variable and restricted-mode errors.
var (
	// ErrReadonly indicates an assignment targeted a readonly variable.
	ErrReadonly = &EngineError{
		Kind:   ErrReadonlyAssign,
		Detail: "readonly variable",
	}

	// ErrRestrictedPath indicates a restricted shell attempted to run a
	// command containing a slash.
	ErrRestrictedPath = &EngineError{
		Kind:   ErrRestrictedViolation,
		Detail: "cannot specify '/' in command names",
	}

	// ErrRestrictedRedirect indicates a restricted shell attempted output
	// redirection.
	ErrRestrictedRedirect = &EngineError{
		Kind:   ErrRestrictedViolation,
		Detail: "cannot redirect output",
	}

	// ErrRestrictedAssign indicates a restricted shell attempted to reassign
	// PATH, SHELL, ENV, or BASH_ENV.
	ErrRestrictedAssign = &EngineError{
		Kind:   ErrRestrictedViolation,
		Detail: "cannot assign to restricted variable",
	}
)

// Terminal and signal errors.
var (
	// ErrNotATerminal indicates a terminal-arbiter operation was attempted
	// without a controlling terminal.
	ErrNotATerminal = &EngineError{
		Kind:   ErrInvalidState,
		Detail: "not a terminal",
	}

	// ErrTerminalHandoff indicates tcsetpgrp failed while transferring the
	// terminal to a job's process group.
	ErrTerminalHandoff = &EngineError{
		Kind:   ErrInternal,
		Detail: "failed to transfer terminal control",
	}

	// ErrInterrupted indicates a foreground wait was cut short by signal
	// delivery.
	ErrInterrupted = &EngineError{
		Kind:   ErrSignalInterruption,
		Detail: "interrupted",
	}

	// ErrUnknownSignal indicates a signal name or number did not resolve.
	ErrUnknownSignal = &EngineError{
		Kind:   ErrInvalidConfig,
		Detail: "unknown signal specification",
	}
)

// Trap errors.
var (
	// ErrTrapRecursion indicates a trap handler fired while already running,
	// and was suppressed per the re-entrancy guard.
	ErrTrapRecursion = &EngineError{
		Kind:   ErrInvalidState,
		Detail: "trap handler already running",
	}

	// ErrTrapBodyFailed indicates the trap action returned a nonzero status;
	// wrapped rather than sentinel-equal since the underlying error varies.
	ErrTrapBodyFailed = &EngineError{
		Kind:   ErrInternal,
		Detail: "trap action failed",
	}
)
