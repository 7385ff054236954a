package detector

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/duskline/duskline/models"
)

// rawRecord mirrors the detector's native NDJSON record shape:
// DetectorName, Verified, Raw, and a nested SourceMetadata.Data.Git block.
type rawRecord struct {
	DetectorName   string `json:"DetectorName"`
	DetectorType   string `json:"DetectorType"`
	Verified       bool   `json:"Verified"`
	Raw            string `json:"Raw"`
	SourceMetadata struct {
		Data struct {
			Git struct {
				Commit    string `json:"commit"`
				File      string `json:"file"`
				Timestamp string `json:"timestamp"`
			} `json:"Git"`
		} `json:"Data"`
	} `json:"SourceMetadata"`
}

// rawRecordFixedKeys are the top-level keys rawRecord already captures
// typed; everything else in the line (trufflehog's ExtraData,
// StructuredData, and any detector-specific fields) survives into
// Finding.Extra verbatim instead of being dropped.
var rawRecordFixedKeys = []string{"DetectorName", "DetectorType", "Verified", "Raw", "SourceMetadata"}

// extraFields re-parses line as a generic map and strips the keys rawRecord
// already owns, returning nil (not an empty map) when nothing is left so
// Finding.Extra's omitempty keeps clean records free of a stray "{}".
func extraFields(line []byte) map[string]any {
	var generic map[string]any
	if err := json.Unmarshal(line, &generic); err != nil {
		return nil
	}
	for _, k := range rawRecordFixedKeys {
		delete(generic, k)
	}
	if len(generic) == 0 {
		return nil
	}
	return generic
}

// ParseResult is the Parse state's output.
type ParseResult struct {
	// Verified are the kept findings: Verified=true records only.
	Verified []models.Finding
	// TotalRecords is every parseable record seen, verified or not.
	TotalRecords int
	// UnparseableLines counts lines that were not valid JSON.
	UnparseableLines int
	// RawOutputEmpty is true when the detector produced no output at all.
	RawOutputEmpty bool
}

// Parse reads outputPath line by line, keeping only verified=true records
// and enriching each with scan context. Non-parseable lines are logged and dropped, never fatal.
func Parse(outputPath string, org, repoURL, commit string, scanTimestamp time.Time) (*ParseResult, error) {
	f, err := os.Open(outputPath)
	if err != nil {
		return nil, fmt.Errorf("opening detector output %s: %w", outputPath, err)
	}
	defer f.Close()

	result := &ParseResult{RawOutputEmpty: true}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		result.RawOutputEmpty = false

		var rec rawRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			result.UnparseableLines++
			slog.Debug("dropping unparseable detector output line", "file", outputPath, "error", err)
			continue
		}
		result.TotalRecords++

		if !rec.Verified {
			continue
		}

		result.Verified = append(result.Verified, models.Finding{
			DetectorName: rec.DetectorName,
			DetectorType: rec.DetectorType,
			Verified:     true,
			Raw:          rec.Raw,
			SourceMetadata: models.SourceMetadataData{
				Git: models.GitSourceData{
					Commit:    rec.SourceMetadata.Data.Git.Commit,
					File:      rec.SourceMetadata.Data.Git.File,
					Timestamp: rec.SourceMetadata.Data.Git.Timestamp,
				},
			},
			Extra:         extraFields(line),
			ScanTimestamp: scanTimestamp,
			Organization:  org,
			RepositoryURL: repoURL,
			ScannedCommit: commit,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading detector output %s: %w", outputPath, err)
	}
	return result, nil
}
