// Package scope validates a requested scan scope against the device's
// allow-list. Entries outside the allow-list are dropped with an audit note,
// never silently scanned, and the validator never widens scope on its own.
package scope

import (
	"fmt"
	"math"
	"net/netip"
	"strings"

	"yfitg/scout/internal/domain"

	log "github.com/sirupsen/logrus"
)

type Validator struct {
	Log      *log.Entry
	allowed  []netip.Prefix
	maxHosts int
}

// NewValidator builds a validator from allow-list CIDR strings. Malformed
// allow-list entries are a configuration error.
func NewValidator(logEntry *log.Entry, allowedRanges []string, maxHosts int) (*Validator, error) {
	if len(allowedRanges) == 0 {
		return nil, fmt.Errorf("allow-list is empty")
	}

	prefixes := make([]netip.Prefix, 0, len(allowedRanges))
	for _, r := range allowedRanges {
		p, err := netip.ParsePrefix(strings.TrimSpace(r))
		if err != nil {
			return nil, fmt.Errorf("invalid allow-list entry %q: %w", r, err)
		}
		prefixes = append(prefixes, p.Masked())
	}

	return &Validator{
		Log:      logEntry,
		allowed:  prefixes,
		maxHosts: maxHosts,
	}, nil
}

// Validate marks every requested entry allowed or rejected. It returns
// domain.ErrScopeEmpty when nothing survives. The portal's own validation is
// never trusted; everything is re-checked here.
func (v *Validator) Validate(req domain.ScopeRequest) (domain.ScopeSpec, error) {
	var spec domain.ScopeSpec
	hostBudget := v.maxHosts

	for _, raw := range req.CIDRs {
		entry := v.checkCIDR(raw, &hostBudget)
		if entry.Status == domain.ScopeRejected {
			v.Log.WithFields(log.Fields{
				"cidr":   raw,
				"reason": entry.Note,
			}).Warn("Rejected scope entry")
		}
		spec.CIDRs = append(spec.CIDRs, entry)
	}

	for _, raw := range req.HTTPHosts {
		entry := v.checkHTTPHost(raw)
		if entry.Status == domain.ScopeRejected {
			v.Log.WithFields(log.Fields{
				"host":   raw,
				"reason": entry.Note,
			}).Warn("Rejected HTTP host")
		}
		spec.HTTPHosts = append(spec.HTTPHosts, entry)
	}

	if len(spec.AllowedCIDRs()) == 0 && len(spec.AllowedHTTPHosts()) == 0 {
		return spec, domain.ErrScopeEmpty
	}
	return spec, nil
}

func (v *Validator) checkCIDR(raw string, hostBudget *int) domain.ScopeEntry {
	value := strings.TrimSpace(raw)
	entry := domain.ScopeEntry{Value: value, Status: domain.ScopeRejected}

	p, err := netip.ParsePrefix(value)
	if err != nil {
		// Accept a bare address as a /32.
		addr, aerr := netip.ParseAddr(value)
		if aerr != nil {
			entry.Note = "not a valid CIDR block"
			return entry
		}
		p = netip.PrefixFrom(addr, addr.BitLen())
	}
	p = p.Masked()

	if !v.contained(p) {
		entry.Note = "outside consented allow-list"
		return entry
	}

	hosts := hostCount(p)
	if hosts > *hostBudget {
		entry.Note = fmt.Sprintf("exceeds remaining host budget (%d hosts, %d left)", hosts, *hostBudget)
		return entry
	}
	*hostBudget -= hosts

	entry.Status = domain.ScopeAllowed
	return entry
}

// checkHTTPHost accepts only IP literals (with optional scheme/port) that
// fall inside an allowed range. Hostnames cannot be traced to consented
// address space without trusting external resolution, so they are rejected.
func (v *Validator) checkHTTPHost(raw string) domain.ScopeEntry {
	value := strings.TrimSpace(raw)
	entry := domain.ScopeEntry{Value: value, Status: domain.ScopeRejected}

	host := value
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	if i := strings.LastIndexByte(host, ':'); i >= 0 && !strings.Contains(host, "]") {
		host = host[:i]
	}
	host = strings.Trim(host, "[]")

	addr, err := netip.ParseAddr(host)
	if err != nil {
		entry.Note = "hostname cannot be traced to consented address space"
		return entry
	}

	for _, p := range v.allowed {
		if p.Contains(addr) {
			entry.Status = domain.ScopeAllowed
			return entry
		}
	}
	entry.Note = "outside consented allow-list"
	return entry
}

func (v *Validator) contained(p netip.Prefix) bool {
	for _, a := range v.allowed {
		if a.Addr().Is4() != p.Addr().Is4() {
			continue
		}
		if a.Bits() <= p.Bits() && a.Contains(p.Addr()) {
			return true
		}
	}
	return false
}

func hostCount(p netip.Prefix) int {
	free := p.Addr().BitLen() - p.Bits()
	if free >= 31 {
		return math.MaxInt32
	}
	return 1 << uint(free)
}
