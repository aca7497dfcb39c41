// Package scan decomposes a validated scope into tool invocations and
// executes them on a bounded worker pool.
package scan

import (
	"context"
	"fmt"
	"strconv"

	"yfitg/scout/internal/domain"
)

type ToolKind string

const (
	ToolNmap     ToolKind = "nmap"
	ToolWebProbe ToolKind = "nikto"
	ToolTLSCheck ToolKind = "tlscheck"
)

// WorkItem is one tool invocation against one target.
type WorkItem struct {
	Kind   ToolKind
	Target string // CIDR block for enumeration, host for probes
	Port   uint16 // set for TLS checks
}

func (w WorkItem) String() string {
	if w.Port > 0 {
		return fmt.Sprintf("%s %s:%d", w.Kind, w.Target, w.Port)
	}
	return fmt.Sprintf("%s %s", w.Kind, w.Target)
}

// ToolRunner launches and supervises a single tool invocation. The context
// carries the item's timeout; implementations must kill the underlying tool
// when it expires.
type ToolRunner interface {
	Kind() ToolKind
	Run(ctx context.Context, item WorkItem) ([]domain.Finding, error)
}

// Planner turns validated scope into ordered work items. Enumeration first;
// web probes and TLS checks are derived afterwards from what enumeration
// found plus the declared HTTP hosts.
type Planner struct{}

// Plan produces the initial enumeration pass: one port/service enumeration
// per allowed CIDR block.
func (Planner) Plan(spec domain.ScopeSpec) []WorkItem {
	var items []WorkItem
	for _, cidr := range spec.AllowedCIDRs() {
		items = append(items, WorkItem{Kind: ToolNmap, Target: cidr})
	}
	return items
}

// FollowUps derives the probe pass: one web probe per declared or discovered
// HTTP host, one TLS check per TLS-capable service. Every target traces to
// an allowed scope entry: declared hosts were validated, discovered hosts
// came out of an allowed block.
func (Planner) FollowUps(spec domain.ScopeSpec, findings []domain.Finding) []WorkItem {
	var items []WorkItem
	probed := make(map[string]struct{})

	for _, host := range spec.AllowedHTTPHosts() {
		if _, ok := probed[host]; ok {
			continue
		}
		probed[host] = struct{}{}
		items = append(items, WorkItem{Kind: ToolWebProbe, Target: host})
	}

	checked := make(map[string]struct{})
	for _, f := range findings {
		if f.Category != domain.CategoryOpenPort {
			continue
		}

		if isHTTP(f) {
			if _, ok := probed[f.Target]; !ok {
				probed[f.Target] = struct{}{}
				items = append(items, WorkItem{Kind: ToolWebProbe, Target: f.Target})
			}
		}

		if isTLS(f) {
			port := evidencePort(f)
			if port == 0 {
				continue
			}
			key := f.Target + ":" + strconv.Itoa(int(port))
			if _, ok := checked[key]; ok {
				continue
			}
			checked[key] = struct{}{}
			items = append(items, WorkItem{Kind: ToolTLSCheck, Target: f.Target, Port: port})
		}
	}
	return items
}

func isHTTP(f domain.Finding) bool {
	svc, _ := f.Evidence["service"].(string)
	return svc == "http" || svc == "https" || svc == "http-alt"
}

func isTLS(f domain.Finding) bool {
	tls, _ := f.Evidence["tls"].(bool)
	return tls
}

func evidencePort(f domain.Finding) uint16 {
	switch v := f.Evidence["port"].(type) {
	case uint16:
		return v
	case int:
		return uint16(v)
	case float64:
		return uint16(v)
	}
	return 0
}
