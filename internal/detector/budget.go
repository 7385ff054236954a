package detector

import (
	"os"
	"path/filepath"
	"time"
)

// sizeMediumThresholdBytes and sizeLargeThresholdBytes gate the Budget
// state's size multiplier.
const (
	sizeMediumThresholdBytes = 100 * 1024 * 1024
	sizeLargeThresholdBytes  = 500 * 1024 * 1024
	fileCountThreshold       = 1000
)

// RepoStats are the fetched-workspace characteristics the Budget state
// measures to compute the adaptive timeout.
type RepoStats struct {
	SizeBytes int64
	FileCount int
}

// MeasureRepo walks repoPath once to gather the size and file count the
// Budget state needs. It is best-effort: a walk error yields zero-value
// stats rather than failing the Scan Task, since Budget degrades gracefully
// to BASE_TIMEOUT when it cannot measure anything.
func MeasureRepo(repoPath string) RepoStats {
	var stats RepoStats
	_ = filepath.WalkDir(repoPath, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		stats.FileCount++
		if info, ierr := d.Info(); ierr == nil {
			stats.SizeBytes += info.Size()
		}
		return nil
	})
	return stats
}

// AdaptiveTimeout computes the per-attempt detector timeout: base
// timeout, scaled by size and file-count factors, escalated by the attempt
// index on retry, capped at maxTimeout. attempt is 1-indexed (the first
// try uses the unescalated value).
func AdaptiveTimeout(stats RepoStats, baseTimeout, maxTimeout time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	factor := 1.0
	switch {
	case stats.SizeBytes > sizeLargeThresholdBytes:
		factor = 2.0
	case stats.SizeBytes > sizeMediumThresholdBytes:
		factor = 1.5
	}
	if stats.FileCount > fileCountThreshold {
		factor *= 1.3
	}

	budget := time.Duration(float64(baseTimeout) * factor)
	budget *= time.Duration(attempt)

	if budget > maxTimeout {
		budget = maxTimeout
	}
	return budget
}
