package scantask

import (
	"context"
	"fmt"
	"os"

	"github.com/duskline/duskline/internal/detector"
)

// detect runs the Budget + Detect states: it walks the detector's
// command-variant preference list, retrying only on timeout (with an
// escalated adaptive budget) and falling through to the next variant on any
// other non-zero exit.
func (r *Runner) detect(ctx context.Context, repoDir, outDir string, stats detector.RepoStats) (outputPath string, retryCount int, timedOut bool, err error) {
	attempt := 0
	timeouts := 0
	variantIdx := 0

	if mkErr := os.MkdirAll(outDir, 0o755); mkErr != nil {
		return "", 0, false, fmt.Errorf("preparing detector output directory: %w", mkErr)
	}

	for variantIdx < len(detector.Variants) {
		attempt++
		variant := detector.Variants[variantIdx]
		budget := detector.AdaptiveTimeout(stats, r.BaseTimeout, r.MaxTimeout, attempt)

		out := detector.OutputPath(outDir, attempt)

		invCtx, cancel := context.WithTimeout(ctx, budget)
		inv, invErr := r.Detector.Invoke(invCtx, repoDir, out, variant)
		cancel()

		if invErr != nil {
			return "", attempt - 1, false, fmt.Errorf("invoking detector (variant=%s): %w", variant, invErr)
		}

		if r.Debug && inv.Stderr != "" {
			// Kept beside the stdout capture so retainLogs picks it up.
			_ = os.WriteFile(out+".stderr", []byte(inv.Stderr), 0o644)
		}

		if inv.TimedOut {
			// The budget escalates per attempt; after the MaxRetries-th
			// timeout the target is given up as timed out.
			timeouts++
			if timeouts >= r.MaxRetries {
				return "", attempt - 1, true, fmt.Errorf("detector exceeded adaptive budget on variant %s after %d attempts", variant, attempt)
			}
			// Same variant, escalated budget on the next loop iteration.
			continue
		}

		if inv.ExitCode == 0 || nonZeroExitIsAcceptable(out) {
			return out, attempt - 1, false, nil
		}

		// Non-timeout failure: move to the next variant without retrying
		// this one.
		variantIdx++
	}

	return "", attempt - 1, false, fmt.Errorf("all detector command variants exited nonzero")
}

// nonZeroExitIsAcceptable mirrors the well-known secret-detector behavior of
// exiting non-zero when it finds something, as long as it still produced
// output to parse.
func nonZeroExitIsAcceptable(outputPath string) bool {
	info, err := os.Stat(outputPath)
	return err == nil && info.Size() > 0
}
