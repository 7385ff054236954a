package models

import "time"

// GitSourceData is the nested Git source location the detector subprocess
// contract requires on every record.
type GitSourceData struct {
	Commit    string `json:"commit"`
	File      string `json:"file"`
	Timestamp string `json:"timestamp,omitempty"`
}

// SourceMetadataData wraps GitSourceData under the detector's fixed
// "Data.Git" nesting.
type SourceMetadataData struct {
	Git GitSourceData `json:"Git"`
}

// Finding is a single record emitted by the external detector subprocess,
// kept only when Verified is true. The ScanTimestamp/Organization/
// RepositoryURL/ScannedCommit fields are the scan-context augmentation the
// Scan Task's Parse state adds before Publish; downstream analyzers depend
// on this exact shape.
type Finding struct {
	DetectorName   string             `json:"DetectorName"`
	DetectorType   string             `json:"DetectorType,omitempty"`
	Verified       bool               `json:"Verified"`
	Raw            string             `json:"Raw"`
	SourceMetadata SourceMetadataData `json:"SourceMetadata"`
	// Extra holds whatever detector-specific top-level fields rode alongside
	// the fixed shape above (trufflehog's ExtraData/StructuredData and
	// similar), preserved verbatim for downstream analyzers.
	Extra map[string]any `json:"Extra,omitempty"`

	ScanTimestamp time.Time `json:"scan_timestamp"`
	Organization  string    `json:"organization"`
	RepositoryURL string    `json:"repository_url"`
	ScannedCommit string    `json:"scanned_commit"`
}
