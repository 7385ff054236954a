package target

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/duskline/duskline/models"
)

// eventFileTargets reads a CSV export with the Event-DB schema and emits
// CommitTargets. No tabular-file library appears anywhere in the retrieved
// corpus, so this is the one deliberate stdlib-only parser in the package
// (see DESIGN.md); everything downstream of the raw rows follows the same
// conversion and ordering path as the Event-DB backend.
func eventFileTargets(path string) ([]models.Target, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening event file %s: %v", ErrSourceUnavailable, path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading event file header %s: %v", ErrSourceUnavailable, path, err)
	}
	idx, err := resolveColumns(header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	var out []models.Target
	line := 1
	for {
		line++
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			slog.Warn("skipping malformed event file row", "file", path, "line", line, "error", err)
			continue
		}
		t, ok := rowToTarget(row, idx, path, line)
		if !ok {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

type columnIndex struct {
	org, repo, commit, preCommit, timestamp, stars int
}

func resolveColumns(header []string) (columnIndex, error) {
	idx := columnIndex{org: -1, repo: -1, commit: -1, preCommit: -1, timestamp: -1, stars: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "organization", "org":
			idx.org = i
		case "repository", "repo":
			idx.repo = i
		case "commit", "commit_sha", "commit_id":
			idx.commit = i
		case "pre_commit", "pre_commit_sha", "pre_push_commit":
			idx.preCommit = i
		case "timestamp", "pushed_at":
			idx.timestamp = i
		case "stars", "star_count":
			idx.stars = i
		}
	}
	if idx.org < 0 || idx.repo < 0 || idx.commit < 0 {
		return idx, fmt.Errorf("event file is missing a required column (need organization, repository, commit)")
	}
	return idx, nil
}

func rowToTarget(row []string, idx columnIndex, path string, line int) (models.Target, bool) {
	get := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	org, repo, commit := get(idx.org), get(idx.repo), get(idx.commit)
	if org == "" || repo == "" || commit == "" {
		slog.Warn("skipping event file row missing required field", "file", path, "line", line)
		return nil, false
	}

	t := models.CommitTarget{Org: org, Repo: repo, Commit: commit, PreCommit: get(idx.preCommit)}
	if ts := get(idx.timestamp); ts != "" {
		if v, err := strconv.ParseInt(ts, 10, 64); err == nil {
			t.PushedAt = v
		}
	}
	if idx.stars >= 0 {
		if s := get(idx.stars); s != "" {
			if v, err := strconv.Atoi(s); err == nil {
				t.HasStars = true
				t.Stars = v
			}
		}
	}
	return t, true
}
