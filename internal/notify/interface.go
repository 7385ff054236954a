package notify

import (
	"context"

	"github.com/duskline/duskline/models"
)

// EventKind is one of the two notification events the dispatcher
// recognizes: Immediate fires the first time findings appear for an
// organization within a run; Completion fires once per target that ended
// with findings, after Publish has placed the artifact.
type EventKind string

const (
	EventImmediate  EventKind = "immediate"
	EventCompletion EventKind = "completion"
)

// Event carries everything a channel needs to render a message. It is
// content-agnostic from the dispatcher's point of view: the dispatcher only
// routes it to configured channels.
type Event struct {
	Kind         EventKind
	CanonicalKey string
	Organization string
	// Preview is populated on Immediate events with one finding. Channels
	// render only its detector name, file and commit, never the raw secret
	// material it carries.
	Preview *models.Finding
	// Findings is populated on Completion events for the categorical
	// breakdown by detector.
	Findings     []models.Finding
	ArtifactPath string
}

// Channel is implemented by each notification provider.
type Channel interface {
	Name() string
	IsConfigured() bool
	Send(ctx context.Context, evt Event) error
}
