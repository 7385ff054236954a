package config

import "testing"

func validRunConfig() *RunConfig {
	return &RunConfig{
		Source:      SourceDescriptor{Single: "acme"},
		Ordering:    OrderingLatest,
		Workers:     4,
		BaseTimeout: 900,
		MaxTimeout:  3600,
		MaxRetries:  3,
		ResultsDir:  "/tmp/results",
		StateFile:   "/tmp/state.json",
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	if err := validRunConfig().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestValidateRejectsZeroWorkers(t *testing.T) {
	rc := validRunConfig()
	rc.Workers = 0
	if err := rc.Validate(); err == nil {
		t.Error("zero workers must be rejected at config parse")
	}
	rc.Workers = -1
	if err := rc.Validate(); err == nil {
		t.Error("negative workers must be rejected")
	}
}

func TestValidateRejectsBadTimeouts(t *testing.T) {
	rc := validRunConfig()
	rc.BaseTimeout = 0
	if err := rc.Validate(); err == nil {
		t.Error("zero base timeout must be rejected")
	}

	rc = validRunConfig()
	rc.MaxTimeout = rc.BaseTimeout - 1
	if err := rc.Validate(); err == nil {
		t.Error("max timeout below base must be rejected")
	}
}

func TestValidateRejectsResumeWithRestart(t *testing.T) {
	rc := validRunConfig()
	rc.Resume = true
	rc.Restart = true
	if err := rc.Validate(); err == nil {
		t.Error("--resume with --restart must be rejected")
	}
}

func TestValidateRequiresASource(t *testing.T) {
	rc := validRunConfig()
	rc.Source = SourceDescriptor{}
	if err := rc.Validate(); err == nil {
		t.Error("config without any source must be rejected")
	}
}

func TestParseOrdering(t *testing.T) {
	for _, valid := range []string{"random", "latest", "stars", "file-order"} {
		if _, err := ParseOrdering(valid); err != nil {
			t.Errorf("ParseOrdering(%q): %v", valid, err)
		}
	}
	if got, err := ParseOrdering(""); err != nil || got != OrderingLatest {
		t.Errorf("ParseOrdering(\"\") = %v, %v; want latest default", got, err)
	}
	if _, err := ParseOrdering("alphabetical"); err == nil {
		t.Error("unknown ordering accepted")
	}
}

func TestDefaultWorkerCount(t *testing.T) {
	if got := DefaultWorkerCount(0); got < 1 || got > 8 {
		t.Errorf("DefaultWorkerCount(0) = %d, want within [1, 8]", got)
	}
	// The memory term bounds the result: 2 GB / 2 = 1 worker.
	if got := DefaultWorkerCount(2); got != 1 {
		t.Errorf("DefaultWorkerCount(2) = %d, want 1", got)
	}
	// A huge memory figure leaves the CPU/cap terms in charge.
	if got := DefaultWorkerCount(1024); got > 8 {
		t.Errorf("DefaultWorkerCount(1024) = %d, exceeds cap", got)
	}
}
