package models

import "time"

// OutcomeStatus is the terminal disposition of a completed Scan Task.
type OutcomeStatus string

const (
	StatusCompletedClean        OutcomeStatus = "Completed-Clean"
	StatusCompletedWithFindings OutcomeStatus = "Completed-WithFindings"
	StatusFailedTransient       OutcomeStatus = "Failed-Transient"
	StatusFailedPermanent       OutcomeStatus = "Failed-Permanent"
	StatusTimedOut              OutcomeStatus = "TimedOut"
	StatusSkippedAlreadyDone    OutcomeStatus = "Skipped-AlreadyDone"
)

// ErrorKind is the taxonomy of per-target failure causes, carried on the
// Outcome as a typed value rather than as an error string.
type ErrorKind string

const (
	ErrorNone              ErrorKind = ""
	ErrorSourceUnavailable ErrorKind = "source-unavailable"
	ErrorSourceCorrupt     ErrorKind = "source-corrupt"
	ErrorPrepare           ErrorKind = "prepare"
	ErrorFetch             ErrorKind = "fetch"
	ErrorDetectTimeout     ErrorKind = "detect-timeout"
	ErrorDetectFailure     ErrorKind = "detect-failure"
	ErrorParse             ErrorKind = "parse"
	ErrorPublish           ErrorKind = "publish"
	ErrorCleanup           ErrorKind = "cleanup"
)

// Recordable reports whether an Outcome with this status should be added to
// the Progress Store's success set.
func (s OutcomeStatus) Recordable() bool {
	switch s {
	case StatusCompletedClean, StatusCompletedWithFindings, StatusSkippedAlreadyDone:
		return true
	default:
		return false
	}
}

// Outcome is produced by each completed Scan Task.
type Outcome struct {
	Target       Target
	CanonicalKey string
	Status       OutcomeStatus
	Findings     []Finding
	Elapsed      time.Duration
	RetryCount   int
	ErrorKind    ErrorKind
	ErrorDetail  string
	ArtifactPath string
}
