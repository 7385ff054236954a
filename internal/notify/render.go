package notify

import (
	"fmt"
	"sort"
	"strings"
)

// renderTitle produces the one-line subject for an event. It never includes
// raw secret material; only detector names and locations.
func renderTitle(evt Event) string {
	switch evt.Kind {
	case EventImmediate:
		return fmt.Sprintf("Verified secret discovered in %s", evt.Organization)
	case EventCompletion:
		return fmt.Sprintf("Scan of %s completed: %d verified secret(s)", evt.CanonicalKey, len(evt.Findings))
	default:
		return fmt.Sprintf("duskline event for %s", evt.CanonicalKey)
	}
}

// renderBody produces the message body: a preview for Immediate events, a
// per-detector breakdown plus artifact path for Completion events.
func renderBody(evt Event) string {
	var b strings.Builder
	switch evt.Kind {
	case EventImmediate:
		fmt.Fprintf(&b, "Target: %s\n", evt.CanonicalKey)
		if evt.Preview != nil {
			fmt.Fprintf(&b, "Detector: %s\n", evt.Preview.DetectorName)
			if f := evt.Preview.SourceMetadata.Git.File; f != "" {
				fmt.Fprintf(&b, "File: %s\n", f)
			}
			if c := evt.Preview.SourceMetadata.Git.Commit; c != "" {
				fmt.Fprintf(&b, "Commit: %s\n", c)
			}
		}
		b.WriteString("More findings may follow; a completion summary will be sent per target.")
	case EventCompletion:
		fmt.Fprintf(&b, "Target: %s\n", evt.CanonicalKey)
		for _, line := range detectorBreakdown(evt) {
			fmt.Fprintf(&b, "  %s\n", line)
		}
		if evt.ArtifactPath != "" {
			fmt.Fprintf(&b, "Results: %s", evt.ArtifactPath)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// detectorBreakdown counts findings per detector, sorted by detector name
// for stable output.
func detectorBreakdown(evt Event) []string {
	counts := make(map[string]int)
	for _, f := range evt.Findings {
		counts[f.DetectorName]++
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s: %d", name, counts[name]))
	}
	return lines
}
