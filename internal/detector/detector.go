// Package detector invokes the external secret-detection subprocess and
// parses its newline-delimited JSON output. Detection itself — what counts as a secret, how verification is
// performed — lives entirely outside this repository; this package only
// knows how to run the binary, survive its exit-code quirks, and read what
// it printed.
package detector

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// terminationGrace is how long Invoke waits after a graceful termination
// request before forcibly killing the detector subprocess.
const terminationGrace = 5 * time.Second

// Detector invokes the external secret-detection binary.
type Detector struct {
	// Path is the resolved binary path or a bare name looked up on PATH.
	Path string
}

// New returns a Detector for the binary at path (or found on PATH if path
// is empty or a bare name).
func New(path string) *Detector {
	if path == "" {
		path = "trufflehog"
	}
	return &Detector{Path: path}
}

// Invocation is the outcome of a single Invoke call.
type Invocation struct {
	// Stdout is the path of the file the subprocess's stdout was streamed
	// to.
	Stdout string
	// Stderr is the captured stderr, truncated for diagnostics.
	Stderr string
	// TimedOut is true when ctx was done (deadline exceeded or cancelled)
	// by the time the subprocess had exited.
	TimedOut bool
	// ExitCode is the subprocess exit code, or -1 if it never started.
	ExitCode int
}

// Invoke runs the detector against repoPath using the given command
// variant, requesting JSON output and verified-only filtering.
// stdout is streamed to outputPath. ctx carries the adaptive budget
// deadline; on expiry the subprocess receives SIGTERM, then SIGKILL after a
// short grace period if it has not exited.
func (d *Detector) Invoke(ctx context.Context, repoPath, outputPath string, variant Variant) (*Invocation, error) {
	args := variant.Args(repoPath)

	// nosemgrep: go.lang.security.audit.dangerous-exec-command.dangerous-exec-command
	cmd := exec.Command(d.Path, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	outFile, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("creating detector output file %s: %w", outputPath, err)
	}
	defer outFile.Close()

	var stderrBuf bytes.Buffer
	cmd.Stdout = outFile
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting detector %s: %w", d.Path, err)
	}

	waitErr := waitWithDeadline(ctx, cmd)

	inv := &Invocation{
		Stdout:   outputPath,
		Stderr:   compactOutput(stderrBuf.String(), 2000),
		ExitCode: exitCode(cmd, waitErr),
	}
	if ctx.Err() != nil {
		inv.TimedOut = true
	}
	return inv, nil
}

// waitWithDeadline waits for cmd to exit, and on ctx cancellation sends a
// graceful termination to the whole process group followed by a forced
// kill after terminationGrace.
func waitWithDeadline(ctx context.Context, cmd *exec.Cmd) error {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		terminateGroup(cmd, syscall.SIGTERM)
		select {
		case err := <-done:
			return err
		case <-time.After(terminationGrace):
			terminateGroup(cmd, syscall.SIGKILL)
			return <-done
		}
	}
}

func terminateGroup(cmd *exec.Cmd, sig syscall.Signal) {
	if cmd.Process == nil {
		return
	}
	// Negative pid targets the process group created by Setpgid, so any
	// children the detector spawned are reached too.
	_ = syscall.Kill(-cmd.Process.Pid, sig)
}

func exitCode(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if waitErr != nil && isExitError(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func isExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}

func compactOutput(s string, max int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	s = strings.Join(strings.Fields(strings.Join(lines, " | ")), " ")
	if max > 0 && len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}

// OutputPath builds a deterministic per-attempt stdout capture path under
// workDir, so debug mode can retain every attempt's raw output.
func OutputPath(workDir string, attempt int) string {
	return filepath.Join(workDir, fmt.Sprintf("detector-attempt-%d.ndjson", attempt))
}
