package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"yfitg/scout/internal/domain"

	log "github.com/sirupsen/logrus"
)

// NiktoRunner probes one web server per invocation using the external nikto
// tool with JSON output. The process is killed when the item's context
// expires.
type NiktoRunner struct {
	Log    *log.Entry
	Binary string // defaults to "nikto"
}

type niktoOutput struct {
	Host []niktoItem `json:"host"`
}

type niktoItem struct {
	Port        string `json:"port"`
	Method      string `json:"method"`
	URI         string `json:"uri"`
	Description string `json:"description"`
}

func (r *NiktoRunner) Kind() ToolKind { return ToolWebProbe }

func (r *NiktoRunner) Run(ctx context.Context, item WorkItem) ([]domain.Finding, error) {
	binary := r.Binary
	if binary == "" {
		binary = "nikto"
	}

	l := r.Log.WithField("host", item.Target)
	l.Info("Starting web probe")

	cmd := exec.CommandContext(ctx, binary, "-h", item.Target, "-Format", "json", "-output", "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("nikto %s: %w (%s)", item.Target, err, strings.TrimSpace(stderr.String()))
	}

	var out niktoOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		l.WithError(err).Warn("Could not parse nikto JSON output")
		return nil, fmt.Errorf("parse nikto output for %s: %w", item.Target, err)
	}

	now := time.Now().UTC()
	findings := make([]domain.Finding, 0, len(out.Host))
	for _, it := range out.Host {
		findings = append(findings, domain.Finding{
			Target:       item.Target,
			Tool:         string(ToolWebProbe),
			Category:     domain.CategoryWebFinding,
			SeverityHint: classifyWebSeverity(it.Description),
			Detail:       it.Description,
			Evidence: map[string]any{
				"port":   it.Port,
				"method": it.Method,
				"uri":    it.URI,
			},
			Timestamp: now,
		})
	}

	l.WithField("findings", len(findings)).Info("Web probe complete")
	return findings, nil
}

// classifyWebSeverity maps probe descriptions onto severity hints by
// keyword. Anything unmatched is low.
func classifyWebSeverity(description string) string {
	desc := strings.ToLower(description)
	for _, w := range []string{"critical", "exploit", "vulnerability"} {
		if strings.Contains(desc, w) {
			return domain.SeverityHigh
		}
	}
	for _, w := range []string{"warning", "issue", "problem"} {
		if strings.Contains(desc, w) {
			return domain.SeverityMedium
		}
	}
	return domain.SeverityLow
}
