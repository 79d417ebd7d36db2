package config

import "testing"

func TestOptionBits(t *testing.T) {
	cfg := Default()
	if cfg.Has(OptErrexit) {
		t.Fatal("fresh config should not have errexit set")
	}
	cfg.Set(OptErrexit, true)
	if !cfg.Has(OptErrexit) {
		t.Fatal("Set(OptErrexit, true) should set the bit")
	}
	cfg.Set(OptJobControl, true)
	if !cfg.Has(OptErrexit) || !cfg.Has(OptJobControl) {
		t.Fatal("setting JobControl should not clear Errexit")
	}
	cfg.Set(OptErrexit, false)
	if cfg.Has(OptErrexit) {
		t.Fatal("Set(OptErrexit, false) should clear the bit")
	}
	if !cfg.Has(OptJobControl) {
		t.Fatal("clearing Errexit should not clear JobControl")
	}
}

func TestDefaultCaps(t *testing.T) {
	cfg := Default()
	if cfg.MaxJobs < 64 {
		t.Errorf("MaxJobs = %d, want >= 64", cfg.MaxJobs)
	}
	if cfg.MaxProcessPerJob < 32 {
		t.Errorf("MaxProcessPerJob = %d, want >= 32", cfg.MaxProcessPerJob)
	}
	if cfg.DeadRingCapacity < 32 {
		t.Errorf("DeadRingCapacity = %d, want >= 32", cfg.DeadRingCapacity)
	}
}

func TestFromEnvironmentOverlay(t *testing.T) {
	t.Setenv("FUNCNEST", "4")
	t.Setenv("TMOUT", "30")
	t.Setenv("IFS", " \t")

	cfg := FromEnvironment(Default())
	if cfg.FuncNest != 4 {
		t.Errorf("FuncNest = %d, want 4", cfg.FuncNest)
	}
	if cfg.Tmout != 30 {
		t.Errorf("Tmout = %d, want 30", cfg.Tmout)
	}
	if cfg.IFS != " \t" {
		t.Errorf("IFS = %q, want %q", cfg.IFS, " \t")
	}
	// MaxJobs wasn't set by environment: should keep the base value.
	if cfg.MaxJobs != Default().MaxJobs {
		t.Errorf("MaxJobs = %d, want unchanged default", cfg.MaxJobs)
	}
}

func TestFromEnvironmentIgnoresInvalidInt(t *testing.T) {
	t.Setenv("FUNCNEST", "not-a-number")
	cfg := FromEnvironment(Default())
	if cfg.FuncNest != 0 {
		t.Errorf("FuncNest = %d, want 0 (invalid env value ignored)", cfg.FuncNest)
	}
}
