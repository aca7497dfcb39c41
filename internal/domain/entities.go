package domain

import "time"

// Contact identifies the person who authorized the assessment.
type Contact struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
}

// ScopeRequest is the raw, untrusted scope carried by a start command.
type ScopeRequest struct {
	CIDRs     []string `json:"cidr"`
	HTTPHosts []string `json:"http_hosts"`
}

// StartRequest is one remotely authorized scan request. Immutable once
// accepted; exactly one run is derived from it.
type StartRequest struct {
	DeviceID   string       `json:"device_id"`
	ConsentID  string       `json:"consent_id"`
	Scope      ScopeRequest `json:"scope"`
	Contact    Contact      `json:"contact"`
	ReceivedAt time.Time    `json:"received_at"`
}

type ScopeStatus string

const (
	ScopeAllowed  ScopeStatus = "allowed"
	ScopeRejected ScopeStatus = "rejected"
)

// ScopeEntry is a single CIDR block or HTTP host after validation. Rejected
// entries keep an audit note explaining why they were dropped.
type ScopeEntry struct {
	Value  string      `json:"value"`
	Status ScopeStatus `json:"status"`
	Note   string      `json:"note,omitempty"`
}

// ScopeSpec is the validated scope. Every scan target used downstream must
// trace back to an entry with status "allowed".
type ScopeSpec struct {
	CIDRs     []ScopeEntry `json:"cidrs"`
	HTTPHosts []ScopeEntry `json:"http_hosts"`
}

// AllowedCIDRs returns the values of all allowed CIDR entries.
func (s ScopeSpec) AllowedCIDRs() []string {
	return allowedValues(s.CIDRs)
}

// AllowedHTTPHosts returns the values of all allowed HTTP host entries.
func (s ScopeSpec) AllowedHTTPHosts() []string {
	return allowedValues(s.HTTPHosts)
}

func allowedValues(entries []ScopeEntry) []string {
	var out []string
	for _, e := range entries {
		if e.Status == ScopeAllowed {
			out = append(out, e.Value)
		}
	}
	return out
}

// Finding categories produced by tool runners.
const (
	CategoryHost        = "host"
	CategoryOpenPort    = "open_port"
	CategoryWebFinding  = "web_finding"
	CategoryTLSIssue    = "tls_issue"
	CategoryToolTimeout = "tool_timeout"
	CategoryToolError   = "tool_error"
)

// Severity hints attached to findings. These guide report ordering and the
// summary; they are not a risk verdict.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
	SeverityInfo   = "info"
)

// Finding is one discrete observation produced by a scanning tool against
// one target. Append-only once recorded.
type Finding struct {
	Target       string         `json:"target"`
	Tool         string         `json:"tool"`
	Category     string         `json:"category"`
	SeverityHint string         `json:"severity_hint"`
	Detail       string         `json:"detail"`
	Evidence     map[string]any `json:"evidence,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Summary is the executive view of a finding set: prose plus a per-category
// count table.
type Summary struct {
	ExecutiveText string          `json:"executive_text"`
	Table         []CategoryCount `json:"finding_table"`
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
	High     int    `json:"high"`
	Medium   int    `json:"medium"`
	Low      int    `json:"low"`
}

// ReportArtifact is the rendered report for a run. Immutable once built.
// Degraded marks a findings-only document produced after a branded render
// failure.
type ReportArtifact struct {
	PDF         []byte    `json:"-"`
	SHA256      string    `json:"sha256"`
	ConsentID   string    `json:"consent_id"`
	DeviceID    string    `json:"device_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Degraded    bool      `json:"degraded,omitempty"`
}

// UploadReceipt is the collector's acknowledgement of a stored artifact.
// Absence of a receipt means the artifact must remain retained locally.
type UploadReceipt struct {
	ConsentID      string    `json:"consent_id"`
	StoredFilename string    `json:"filename"`
	FileHash       string    `json:"file_hash"`
	ReceivedAt     time.Time `json:"received_at"`
}
