package scan

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"yfitg/scout/internal/domain"

	log "github.com/sirupsen/logrus"
)

// TLSRunner checks the transport security of one TLS-capable service:
// certificate validity window and negotiated protocol version.
type TLSRunner struct {
	Log         *log.Entry
	DialTimeout time.Duration
}

func (r *TLSRunner) Kind() ToolKind { return ToolTLSCheck }

func (r *TLSRunner) Run(ctx context.Context, item WorkItem) ([]domain.Finding, error) {
	addr := net.JoinHostPort(item.Target, strconv.Itoa(int(item.Port)))
	l := r.Log.WithField("addr", addr)
	l.Info("Checking transport security")

	dialTimeout := r.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = 5 * time.Second
	}

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: dialTimeout},
		Config: &tls.Config{
			// Observation only: expired or self-signed certificates are
			// findings, not connection failures.
			InsecureSkipVerify: true,
			MinVersion:         tls.VersionTLS10,
		},
	}

	now := time.Now().UTC()
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// A failed handshake on a TLS-tagged port is itself an observation.
		return []domain.Finding{{
			Target:       item.Target,
			Tool:         string(ToolTLSCheck),
			Category:     domain.CategoryTLSIssue,
			SeverityHint: domain.SeverityMedium,
			Detail:       fmt.Sprintf("TLS handshake failed on port %d: %v", item.Port, err),
			Evidence:     map[string]any{"port": item.Port, "issue": "handshake_failed"},
			Timestamp:    now,
		}}, nil
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	var findings []domain.Finding

	if len(state.PeerCertificates) > 0 {
		cert := state.PeerCertificates[0]

		if cert.NotAfter.Before(now) {
			findings = append(findings, tlsFinding(item, now, domain.SeverityHigh,
				"expired_certificate",
				fmt.Sprintf("certificate expired on %s", cert.NotAfter.Format(time.RFC3339))))
		} else if days := int(cert.NotAfter.Sub(now).Hours() / 24); days < 30 {
			findings = append(findings, tlsFinding(item, now, domain.SeverityMedium,
				"certificate_expiring_soon",
				fmt.Sprintf("certificate expires in %d days", days)))
		}
	}

	if state.Version < tls.VersionTLS12 {
		findings = append(findings, tlsFinding(item, now, domain.SeverityHigh,
			"weak_tls_protocol",
			fmt.Sprintf("deprecated protocol negotiated: %s", tls.VersionName(state.Version))))
	}

	l.WithField("issues", len(findings)).Info("Transport security check complete")
	return findings, nil
}

func tlsFinding(item WorkItem, ts time.Time, severity, issue, detail string) domain.Finding {
	return domain.Finding{
		Target:       item.Target,
		Tool:         string(ToolTLSCheck),
		Category:     domain.CategoryTLSIssue,
		SeverityHint: severity,
		Detail:       detail,
		Evidence:     map[string]any{"port": item.Port, "issue": issue},
		Timestamp:    ts,
	}
}
