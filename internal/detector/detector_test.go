package detector

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fakeDetector(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-detector")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil { // #nosec G306 -- test helper binary must be executable
		t.Fatal(err)
	}
	return path
}

func TestInvokeStreamsStdoutToFile(t *testing.T) {
	d := New(fakeDetector(t, `echo '{"DetectorName":"AWS","Verified":true}'`))
	out := filepath.Join(t.TempDir(), "out.ndjson")

	inv, err := d.Invoke(context.Background(), t.TempDir(), out, VariantPreferred)
	if err != nil {
		t.Fatal(err)
	}
	if inv.TimedOut {
		t.Error("short invocation reported TimedOut")
	}
	if inv.ExitCode != 0 {
		t.Errorf("exit code = %d", inv.ExitCode)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Error("stdout was not streamed to the output file")
	}
}

func TestInvokeCapturesStderrSeparately(t *testing.T) {
	d := New(fakeDetector(t, `echo 'diagnostic noise' >&2`))
	out := filepath.Join(t.TempDir(), "out.ndjson")

	inv, err := d.Invoke(context.Background(), t.TempDir(), out, VariantPreferred)
	if err != nil {
		t.Fatal(err)
	}
	if inv.Stderr == "" {
		t.Error("stderr was not captured")
	}
	data, _ := os.ReadFile(out)
	if len(data) != 0 {
		t.Error("stderr leaked into the stdout capture")
	}
}

func TestInvokeKillsOnDeadline(t *testing.T) {
	d := New(fakeDetector(t, `sleep 30`))
	out := filepath.Join(t.TempDir(), "out.ndjson")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	inv, err := d.Invoke(ctx, t.TempDir(), out, VariantPreferred)
	if err != nil {
		t.Fatal(err)
	}
	if !inv.TimedOut {
		t.Error("deadline breach not reported as TimedOut")
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("subprocess outlived the grace period: %v", elapsed)
	}
}

func TestVariantArgs(t *testing.T) {
	preferred := VariantPreferred.Args("/repo")
	if !containsArg(preferred, "--json") || !containsArg(preferred, "--only-verified") {
		t.Errorf("preferred variant args = %v", preferred)
	}

	fallback := VariantFallback.Args("/repo")
	if containsArg(fallback, "--only-verified") {
		t.Errorf("fallback variant still passes the verified-only flag: %v", fallback)
	}
	if !containsArg(fallback, "--json") {
		t.Errorf("fallback variant dropped JSON output: %v", fallback)
	}

	minimal := VariantMinimal.Args("/repo")
	if len(minimal) != 2 {
		t.Errorf("minimal variant carries optional flags: %v", minimal)
	}
}

func containsArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}
