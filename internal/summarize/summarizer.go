// Package summarize turns raw findings into executive prose. It tries a
// local inference endpoint first and falls back to a deterministic template
// built from category counts, so the pipeline can never stall here.
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"yfitg/scout/internal/domain"

	log "github.com/sirupsen/logrus"
)

type Summarizer struct {
	Log      *log.Entry
	Endpoint string // empty disables inference entirely
	Timeout  time.Duration
	Client   *http.Client
}

type inferenceRequest struct {
	Context string `json:"context"`
	Type    string `json:"type"`
}

type inferenceResponse struct {
	Summary string `json:"summary"`
}

// Summarize produces the run summary. Inference failure of any kind
// (timeout, endpoint down, malformed output) degrades to the template.
func (s *Summarizer) Summarize(ctx context.Context, findings *domain.FindingSet) domain.Summary {
	table := findings.CountByCategory()

	if s.Endpoint == "" {
		return domain.Summary{ExecutiveText: Fallback(table), Table: table}
	}

	text, err := s.infer(ctx, findings)
	if err != nil {
		s.Log.WithError(err).Warn("Inference unavailable, using template summary")
		return domain.Summary{ExecutiveText: Fallback(table), Table: table}
	}
	return domain.Summary{ExecutiveText: text, Table: table}
}

func (s *Summarizer) infer(ctx context.Context, findings *domain.FindingSet) (string, error) {
	timeout := s.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(inferenceRequest{
		Context: formatContext(findings),
		Type:    "executive_summary",
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInferenceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: endpoint returned %d", domain.ErrInferenceUnavailable, resp.StatusCode)
	}

	var out inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: malformed response: %v", domain.ErrInferenceUnavailable, err)
	}
	if strings.TrimSpace(out.Summary) == "" {
		return "", fmt.Errorf("%w: empty summary", domain.ErrInferenceUnavailable)
	}
	return strings.TrimSpace(out.Summary), nil
}

// Fallback builds the deterministic template summary. Pure data
// transformation, no external calls; it always succeeds.
func Fallback(table []domain.CategoryCount) string {
	var hosts, ports, high, medium, low int
	for _, cc := range table {
		switch cc.Category {
		case domain.CategoryHost:
			hosts = cc.Count
		case domain.CategoryOpenPort:
			ports = cc.Count
		}
		high += cc.High
		medium += cc.Medium
		low += cc.Low
	}

	var b strings.Builder
	b.WriteString("Network Security Assessment Summary\n\n")
	fmt.Fprintf(&b, "This assessment identified %d active hosts on your network with %d open ports and services.\n\n", hosts, ports)
	b.WriteString("Security Findings:\n")
	fmt.Fprintf(&b, "- High Severity Issues: %d\n", high)
	fmt.Fprintf(&b, "- Medium Severity Issues: %d\n", medium)
	fmt.Fprintf(&b, "- Low Severity Issues: %d\n\n", low)

	if high > 0 {
		b.WriteString("We recommend addressing high-severity issues immediately and implementing a regular security review process.")
	} else {
		b.WriteString("No high-severity issues were observed. We recommend a regular security review process to keep it that way.")
	}
	return b.String()
}

// formatContext renders findings as plain text for the inference prompt,
// bounded so the context window stays small.
func formatContext(findings *domain.FindingSet) string {
	var lines []string

	for _, cc := range findings.CountByCategory() {
		lines = append(lines, fmt.Sprintf("%s: %d (high=%d medium=%d low=%d)",
			cc.Category, cc.Count, cc.High, cc.Medium, cc.Low))
	}
	lines = append(lines, "")

	byTarget := findings.ByTarget()
	targets := 0
	for target, fs := range byTarget {
		if targets >= 10 {
			break
		}
		targets++
		lines = append(lines, "Target "+target+":")
		for i, f := range fs {
			if i >= 5 {
				break
			}
			lines = append(lines, "  - "+f.Detail)
		}
	}
	return strings.Join(lines, "\n")
}
