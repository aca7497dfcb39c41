// Package display implements the progress contract for the device display.
// The hardware rendering layer consumes the same contract; this package only
// decides what to show, never how to draw it.
package display

import (
	"yfitg/scout/internal/domain"

	log "github.com/sirupsen/logrus"
)

// StatusLine maps run states to the short message shown next to the
// progress indicator.
func StatusLine(state domain.RunState) string {
	switch state {
	case domain.StateIdle:
		return "Ready - waiting for authorization"
	case domain.StateValidating:
		return "Validating scope"
	case domain.StateScanning:
		return "Scanning network"
	case domain.StateSummarizing:
		return "Summarizing findings"
	case domain.StateReporting:
		return "Generating report"
	case domain.StateUploading:
		return "Uploading report"
	case domain.StateComplete:
		return "Assessment complete"
	case domain.StateAborted:
		return "Scan aborted"
	case domain.StateFailed:
		return "Scan failed"
	default:
		return string(state)
	}
}

// LogDisplay renders progress to the structured log. It stands in wherever
// no e-ink panel is attached and doubles as the audit trail of what the
// operator saw.
type LogDisplay struct {
	Log *log.Entry
}

func (d *LogDisplay) Render(state domain.RunState, percent float64, message string) {
	if message == "" {
		message = StatusLine(state)
	}
	d.Log.WithFields(log.Fields{
		"state":   state,
		"percent": percent,
	}).Info(message)
}
