package scan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"yfitg/scout/internal/domain"

	nmap "github.com/Ullaakut/nmap/v3"
	log "github.com/sirupsen/logrus"
)

// NmapConfig mirrors the scanning section of the device config that applies
// to port/service enumeration.
type NmapConfig struct {
	Ports   []string
	Timing  string
	MinRate int
}

// NmapRunner performs non-intrusive port and service enumeration of one CIDR
// block per invocation.
type NmapRunner struct {
	Log    *log.Entry
	Config NmapConfig
}

func (r *NmapRunner) Kind() ToolKind { return ToolNmap }

func (r *NmapRunner) Run(ctx context.Context, item WorkItem) ([]domain.Finding, error) {
	l := r.Log.WithField("cidr", item.Target)
	l.Info("Starting nmap enumeration")

	opts := []nmap.Option{
		nmap.WithTargets(item.Target),
		nmap.WithDisabledDNSResolution(),
		nmap.WithOpenOnly(),     // --open
		nmap.WithServiceInfo(),  // -sV
		nmap.WithVersionLight(), // --version-light
		nmap.WithMaxRetries(1),  // bound total duration; no per-tool retry
	}

	if len(r.Config.Ports) != 0 {
		opts = append(opts, nmap.WithPorts(strings.Join(r.Config.Ports, ",")))
	}
	if r.Config.MinRate > 0 {
		opts = append(opts, nmap.WithMinRate(r.Config.MinRate))
	}

	switch r.Config.Timing {
	case "T0":
		opts = append(opts, nmap.WithTimingTemplate(nmap.TimingSlowest))
	case "T1":
		opts = append(opts, nmap.WithTimingTemplate(nmap.TimingSneaky))
	case "T2":
		opts = append(opts, nmap.WithTimingTemplate(nmap.TimingPolite))
	case "T3", "":
		opts = append(opts, nmap.WithTimingTemplate(nmap.TimingNormal))
	case "T4":
		opts = append(opts, nmap.WithTimingTemplate(nmap.TimingAggressive))
	default:
		l.Errorf("Unknown timing template %q, using normal", r.Config.Timing)
		opts = append(opts, nmap.WithTimingTemplate(nmap.TimingNormal))
	}

	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create nmap scanner: %w", err)
	}

	result, warnings, err := scanner.Run()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("run nmap: %w", err)
	}
	if warnings != nil && len(*warnings) > 0 {
		l.WithField("warnings", *warnings).Warn("Nmap produced warnings")
	}

	now := time.Now().UTC()
	var findings []domain.Finding

	for _, h := range result.Hosts {
		addr := pickHostAddress(h)
		if addr == "" {
			continue
		}

		hostname := ""
		if len(h.Hostnames) > 0 {
			hostname = h.Hostnames[0].Name
		}
		findings = append(findings, domain.Finding{
			Target:       addr,
			Tool:         string(ToolNmap),
			Category:     domain.CategoryHost,
			SeverityHint: domain.SeverityInfo,
			Detail:       "host responded during enumeration",
			Evidence:     map[string]any{"hostname": hostname, "state": h.Status.State},
			Timestamp:    now,
		})

		for _, p := range h.Ports {
			state := strings.ToLower(p.State.State)
			if !strings.HasPrefix(state, "open") {
				continue
			}

			findings = append(findings, domain.Finding{
				Target:       addr,
				Tool:         string(ToolNmap),
				Category:     domain.CategoryOpenPort,
				SeverityHint: domain.SeverityLow,
				Detail:       portDetail(p),
				Evidence: map[string]any{
					"port":     uint16(p.ID),
					"protocol": p.Protocol,
					"service":  p.Service.Name,
					"product":  p.Service.Product,
					"version":  p.Service.Version,
					"tls":      servesTLS(uint16(p.ID), p.Service.Name, p.Service.Tunnel),
				},
				Timestamp: now,
			})
		}
	}

	l.WithFields(log.Fields{
		"hosts":    len(result.Hosts),
		"findings": len(findings),
		"runtime":  result.Stats.Finished.TimeStr,
	}).Info("Nmap enumeration complete")

	return findings, nil
}

func pickHostAddress(h nmap.Host) string {
	for _, a := range h.Addresses {
		if a.AddrType == "ipv4" {
			return a.Addr
		}
	}
	for _, a := range h.Addresses {
		if a.AddrType == "ipv6" {
			return a.Addr
		}
	}
	if len(h.Addresses) > 0 {
		return h.Addresses[0].Addr
	}
	return ""
}

func portDetail(p nmap.Port) string {
	detail := fmt.Sprintf("%d/%s %s", p.ID, p.Protocol, p.Service.Name)
	if p.Service.Product != "" {
		detail += " " + strings.TrimSpace(p.Service.Product+" "+p.Service.Version)
	}
	return detail
}

// servesTLS applies the same service/port heuristics the enumeration output
// supports: an explicit ssl tunnel, an ssl-wrapped service name, or a
// conventionally TLS port.
func servesTLS(port uint16, service, tunnel string) bool {
	if tunnel == "ssl" {
		return true
	}
	svc := strings.ToLower(service)
	if svc == "https" || strings.HasPrefix(svc, "ssl") || svc == "tls" {
		return true
	}
	switch port {
	case 443, 8443, 8883:
		return true
	}
	return false
}
