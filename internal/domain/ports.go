package domain

import "context"

// Summarizer turns a finding set into executive prose. Implementations must
// always return a usable Summary; inference failure degrades to a template,
// it does not propagate.
type Summarizer interface {
	Summarize(ctx context.Context, findings *FindingSet) Summary
}

// ReportMeta is the run identity stamped into a report.
type ReportMeta struct {
	DeviceID   string
	ConsentID  string
	RunID      string
	StatusNote string
	Contact    Contact
}

// ReportBuilder renders findings and a summary into an artifact. A branding
// or template failure degrades to a findings-only document; an error is
// returned only when no document at all could be produced.
type ReportBuilder interface {
	Build(findings []Finding, summary Summary, meta ReportMeta) (*ReportArtifact, error)
}

// Uploader transmits an artifact to the collector. When no receipt could be
// obtained the artifact must already be persisted locally before the error
// is returned.
type Uploader interface {
	Upload(ctx context.Context, artifact *ReportArtifact, statusNote string) (*UploadReceipt, error)
}

// Display is the narrow progress contract consumed by the hardware display.
// The core never manipulates pixels.
type Display interface {
	Render(state RunState, percent float64, message string)
}
