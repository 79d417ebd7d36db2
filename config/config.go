// Package config holds the engine's explicit configuration state: the
// shell option bits, the resource caps from spec §5, and the handful of
// variables (PATH, IFS, FUNCNEST, TMOUT, TPERIOD) the engine reads
// directly rather than through the symbol table's general lookup path.
//
// The teacher has no standalone config package — a single-binary CLI gets
// by on cobra flags alone — but the engine's variable surface is wide
// enough, and consulted by enough packages, to warrant one explicit struct
// rather than scattering os.Getenv calls. No package-level globals: every
// component that needs configuration receives a *Config explicitly.
package config

import (
	"os"
	"strconv"
)

// Option is a single-letter shell option bit (spec §6).
type Option uint32

const (
	// OptErrexit is -e: abort on the failure of the final command of an
	// AND-OR list.
	OptErrexit Option = 1 << iota
	// OptJobControl is -m: process groups and terminal ownership transfers.
	OptJobControl
	// OptHashAll is -h: remember command lookups in the path-hash table.
	OptHashAll
	// OptNoExec is -n: parse but do not execute.
	OptNoExec
	// OptOneCmd is -t: execute one command then exit.
	OptOneCmd
	// OptRestricted is -r: restricted shell.
	OptRestricted
	// OptPrivileged is -p: skip $ENV, reset effective ids.
	OptPrivileged
	// OptInheritDebug is -T: inherit DEBUG/RETURN traps into functions.
	OptInheritDebug
	// OptInheritErr is -E: inherit ERR trap into functions.
	OptInheritErr
	// OptPipefail is -l / pipefail: leftmost-nonzero pipeline status.
	OptPipefail
	// OptLastpipe runs the rightmost pipeline stage in the shell itself.
	OptLastpipe
	// OptInheritErrexit keeps -e enabled inside a subshell.
	OptInheritErrexit
	// OptFuncTrace keeps DEBUG firing inside function bodies.
	OptFuncTrace
	// OptErrTrace keeps ERR firing inside function bodies.
	OptErrTrace
)

// Has reports whether every bit in o is set.
func (c *Config) Has(o Option) bool { return c.Options&o == o }

// Set sets or clears the bits in o.
func (c *Config) Set(o Option, on bool) {
	if on {
		c.Options |= o
	} else {
		c.Options &^= o
	}
}

// Config is the engine's explicit configuration. Populated once at
// startup from the environment (FromEnvironment), then passed by reference
// into the shell context; never mutated through a package-level variable.
type Config struct {
	// Options holds the shell option bits (-e, -m, -r, pipefail, ...).
	Options Option

	// Path is $PATH, split lazily by the dispatcher's search phase.
	Path string
	// IFS is the field-separator character set used by word splitting.
	IFS string
	// FuncNest is $FUNCNEST: the maximum function call nesting depth, or 0
	// for unbounded.
	FuncNest int
	// Tmout is $TMOUT: seconds of input idleness before the shell exits, or
	// 0 to disable.
	Tmout int
	// Tperiod is $TPERIOD: SIGALRM interval in minutes for the periodic
	// command alias, or 0 to disable.
	Tperiod int

	// MaxJobs bounds the job table's capacity (spec §5, ≥ 64).
	MaxJobs int
	// MaxProcessPerJob bounds pipeline members per job (spec §5, ≥ 32).
	MaxProcessPerJob int
	// DeadRingCapacity bounds the unreconciled-SIGCHLD ring (spec §5, ≥ 32).
	DeadRingCapacity int
}

// Default returns a Config with the spec's minimum resource caps and no
// option bits set, matching a freshly started non-interactive shell.
func Default() *Config {
	return &Config{
		Path:             "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin",
		IFS:              " \t\n",
		MaxJobs:          64,
		MaxProcessPerJob: 32,
		DeadRingCapacity: 32,
	}
}

// FromEnvironment overlays values read from the process environment onto a
// base Config (typically Default()), mirroring the teacher's direct
// os.Getenv reads in container/create.go rather than pulling in a config
// framework for a handful of scalars.
func FromEnvironment(base *Config) *Config {
	cfg := *base
	if v, ok := os.LookupEnv("PATH"); ok && v != "" {
		cfg.Path = v
	}
	if v, ok := os.LookupEnv("IFS"); ok {
		cfg.IFS = v
	}
	if v, ok := os.LookupEnv("FUNCNEST"); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.FuncNest = n
		}
	}
	if v, ok := os.LookupEnv("TMOUT"); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Tmout = n
		}
	}
	if v, ok := os.LookupEnv("TPERIOD"); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Tperiod = n
		}
	}
	return &cfg
}
