// Package scantask implements the Scan Task: the per-target state
// machine Prepare → Fetch → Budget → Detect → Parse → Publish →
// Cleanup, with mandatory passage through Cleanup on every exit path.
package scantask

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/duskline/duskline/internal/detector"
	"github.com/duskline/duskline/internal/fetch"
	"github.com/duskline/duskline/internal/workspace"
	"github.com/duskline/duskline/models"
)

// Runner executes a single Scan Task. One Runner is shared by all workers;
// the only mutable state it holds is the per-organization publish locks.
type Runner struct {
	Fetcher      *fetch.Fetcher
	Detector     *detector.Detector
	WorkspaceDir string
	ResultsDir   string
	BaseTimeout  time.Duration
	MaxTimeout   time.Duration
	MaxRetries   int
	Debug        bool

	// ResolveAuth returns the clone URL and credential token for a target,
	// so the Scan Task never needs to know about provider configuration.
	ResolveAuth func(t models.Target) (cloneURL, token string)

	// The results artifact is keyed per org and day, so concurrent targets
	// of the same organization merge into one file; orgLock serializes the
	// read-merge-rename cycle per organization.
	mu       sync.Mutex
	orgLocks map[string]*sync.Mutex
}

// Run drives t through the full state machine and always returns an
// Outcome; it never panics or propagates an error past Cleanup.
func (r *Runner) Run(ctx context.Context, t models.Target) models.Outcome {
	start := time.Now()
	key := t.CanonicalKey()

	// Prepare.
	ws, err := workspace.New(r.WorkspaceDir, "scan-task")
	if err != nil {
		return r.outcome(t, key, models.StatusFailedTransient, models.ErrorPrepare, err, start, 0, nil)
	}
	defer func() {
		if r.Debug {
			r.retainLogs(key, ws.OutDir())
		}
		if cerr := ws.Cleanup(); cerr != nil {
			slog.Warn("workspace cleanup failed", "target", key, "workspace", ws.Root, "error", cerr)
		}
	}()

	// Fetch.
	commit, repoURL, err := r.fetchTarget(ctx, ws, t)
	if err != nil {
		return r.outcome(t, key, models.StatusFailedPermanent, models.ErrorFetch, err, start, 0, nil)
	}

	// Budget + Detect (with retry/variant-fallback loop).
	stats := detector.MeasureRepo(ws.RepoDir())
	outputPath, retryCount, timedOut, detectErr := r.detect(ctx, ws.RepoDir(), ws.OutDir(), stats)
	if timedOut {
		return r.outcome(t, key, models.StatusTimedOut, models.ErrorDetectTimeout, detectErr, start, retryCount, nil)
	}
	if detectErr != nil {
		return r.outcome(t, key, models.StatusFailedPermanent, models.ErrorDetectFailure, detectErr, start, retryCount, nil)
	}

	// Parse.
	org := models.OrganizationOf(t)
	parsed, err := detector.Parse(outputPath, org, repoURL, commit, time.Now().UTC())
	if err != nil {
		return r.outcome(t, key, models.StatusFailedPermanent, models.ErrorParse, err, start, retryCount, nil)
	}
	if parsed.TotalRecords == 0 && !parsed.RawOutputEmpty {
		// The workspace (and the capture in it) is destroyed on return, so
		// copy the raw output out for manual review first.
		preserved := r.preserveRaw(key, outputPath)
		if looksLikeSecretsIndication(outputPath) {
			slog.Warn("detector produced non-JSON output indicating secrets", "target", key, "raw", preserved)
			return r.outcome(t, key, models.StatusCompletedClean, models.ErrorNone, nil, start, retryCount, nil)
		}
		return r.outcome(t, key, models.StatusFailedPermanent, models.ErrorParse, fmt.Errorf("detector output was entirely unparseable (raw output at %s)", preserved), start, retryCount, nil)
	}

	if len(parsed.Verified) == 0 {
		return r.outcome(t, key, models.StatusCompletedClean, models.ErrorNone, nil, start, retryCount, nil)
	}

	// Publish.
	artifactPath, err := r.publish(org, parsed.Verified)
	if err != nil {
		return r.outcome(t, key, models.StatusFailedPermanent, models.ErrorPublish, err, start, retryCount, parsed.Verified)
	}

	out := r.outcome(t, key, models.StatusCompletedWithFindings, models.ErrorNone, nil, start, retryCount, parsed.Verified)
	out.ArtifactPath = artifactPath
	return out
}

func (r *Runner) outcome(t models.Target, key string, status models.OutcomeStatus, kind models.ErrorKind, err error, start time.Time, retries int, findings []models.Finding) models.Outcome {
	o := models.Outcome{
		Target:       t,
		CanonicalKey: key,
		Status:       status,
		Findings:     findings,
		Elapsed:      time.Since(start),
		RetryCount:   retries,
		ErrorKind:    kind,
	}
	if err != nil {
		o.ErrorDetail = err.Error()
	}
	return o
}

// retainLogs copies every per-attempt detector capture into a per-target
// directory under the results root, for debug mode's "preserves per-target
// stdout/stderr" behavior. Best-effort: failures are logged only.
func (r *Runner) retainLogs(key, outDir string) {
	entries, err := os.ReadDir(outDir)
	if err != nil || len(entries) == 0 {
		return
	}
	safe := strings.NewReplacer("/", "_", "@", "_").Replace(key)
	dst := filepath.Join(r.ResultsDir, "logs", safe)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		slog.Warn("failed to retain detector logs", "target", key, "error", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, rerr := os.ReadFile(filepath.Join(outDir, e.Name()))
		if rerr != nil {
			continue
		}
		if werr := os.WriteFile(filepath.Join(dst, e.Name()), data, 0o644); werr != nil {
			slog.Warn("failed to retain detector log", "target", key, "file", e.Name(), "error", werr)
		}
	}
}

// preserveRaw copies a detector capture out of the workspace into the
// results root so it survives cleanup. Returns the destination path, or
// the original path if the copy failed.
func (r *Runner) preserveRaw(key, outputPath string) string {
	data, err := os.ReadFile(outputPath)
	if err != nil {
		return outputPath
	}
	safe := strings.NewReplacer("/", "_", "@", "_").Replace(key)
	dir := filepath.Join(r.ResultsDir, "raw")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("failed to preserve raw detector output", "target", key, "error", err)
		return outputPath
	}
	dst := filepath.Join(dir, safe+".txt")
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		slog.Warn("failed to preserve raw detector output", "target", key, "error", err)
		return outputPath
	}
	return dst
}

func (r *Runner) fetchTarget(ctx context.Context, ws *workspace.Workspace, t models.Target) (commit, repoURL string, err error) {
	cloneURL, token := "", ""
	if r.ResolveAuth != nil {
		cloneURL, token = r.ResolveAuth(t)
	}

	switch v := t.(type) {
	case models.CommitTarget:
		if cloneURL == "" {
			cloneURL = fmt.Sprintf("https://github.com/%s/%s.git", v.Org, v.Repo)
		}
		res, ferr := r.Fetcher.DanglingCommit(ctx, ws, cloneURL, token, v.Commit)
		if ferr != nil {
			return "", "", ferr
		}
		return res.Commit, cloneURL, nil
	case models.RepositoryTarget:
		if cloneURL == "" {
			cloneURL = v.CloneURL
		}
		res, ferr := r.Fetcher.Repository(ctx, ws, cloneURL, token, v.PinnedCommit)
		if ferr != nil {
			return "", "", ferr
		}
		return res.Commit, cloneURL, nil
	default:
		return "", "", fmt.Errorf("unexpected target kind %T for Scan Task (OrganizationTarget must be expanded before scheduling)", t)
	}
}

// looksLikeSecretsIndication handles the case where the detector exited
// with non-JSON stdout that nonetheless mentions a credential-shaped
// finding: the raw output is preserved for manual review and the target is
// marked clean with a diagnostic rather than a hard parse failure.
func looksLikeSecretsIndication(outputPath string) bool {
	data, err := os.ReadFile(outputPath)
	if err != nil {
		return false
	}
	lower := strings.ToLower(string(data))
	for _, kw := range []string{"verified secret", "credential", "api key", "detector:"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (r *Runner) orgLock(org string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.orgLocks == nil {
		r.orgLocks = make(map[string]*sync.Mutex)
	}
	l, ok := r.orgLocks[org]
	if !ok {
		l = &sync.Mutex{}
		r.orgLocks[org] = l
	}
	return l
}

func (r *Runner) publish(org string, findings []models.Finding) (string, error) {
	lock := r.orgLock(org)
	lock.Lock()
	defer lock.Unlock()

	day := time.Now().UTC().Format("2006-01-02")
	dir := filepath.Join(r.ResultsDir, day, org)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating results directory %s: %w", dir, err)
	}

	finalPath := filepath.Join(dir, fmt.Sprintf("verified_secrets_%s.json", org))
	tmpPath := finalPath + ".tmp"

	// The artifact collects every target of this org scanned today, so an
	// earlier target's findings must be carried forward, not clobbered.
	merged, err := existingFindings(finalPath)
	if err != nil {
		return "", err
	}
	merged = append(merged, findings...)

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling findings for %s: %w", org, err)
	}
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return "", fmt.Errorf("writing findings temp file %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("renaming findings file into place at %s: %w", finalPath, err)
	}
	return finalPath, nil
}

// existingFindings loads the day's artifact if one is already in place. A
// present-but-unreadable artifact fails the publish rather than silently
// discarding earlier findings.
func existingFindings(path string) ([]models.Finding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading existing findings file %s: %w", path, err)
	}
	var findings []models.Finding
	if err := json.Unmarshal(data, &findings); err != nil {
		return nil, fmt.Errorf("existing findings file %s is not a valid array: %w", path, err)
	}
	return findings, nil
}
